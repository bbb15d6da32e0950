package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

func newTestStore(t *testing.T) *EncryptedStore {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewEncryptedStore(t.TempDir(), key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEncryptedStore_WrongKeyFails(t *testing.T) {
	dir := t.TempDir()

	key, err := GenerateKey()
	require.NoError(t, err)
	store, err := NewEncryptedStore(dir, key)
	require.NoError(t, err)
	require.NoError(t, store.Mappings().Upsert(domain.CategoryMapping{
		AppID:    "com.example.app",
		Category: domain.CategoryGames,
		AddedBy:  domain.AuthoritySystem,
	}))
	require.NoError(t, store.Close())

	wrongKey, err := GenerateKey()
	require.NoError(t, err)
	bad, err := NewEncryptedStore(dir, wrongKey)
	if err == nil {
		// Schema creation runs on open; a wrong key must fail there or on
		// the first read of existing ciphertext.
		_, readErr := bad.Mappings().Get("com.example.app")
		bad.Close()
		assert.Error(t, readErr)
	}
}

func TestMappingRepo_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	repo := store.Mappings()

	got, err := repo.Get("com.instagram.android")
	require.NoError(t, err)
	assert.Nil(t, got)

	m := domain.CategoryMapping{
		AppID:           "com.instagram.android",
		Category:        domain.CategorySocialMedia,
		Blocked:         false,
		CustomThreshold: 25 * time.Minute,
		AddedBy:         domain.AuthorityUser,
	}
	require.NoError(t, repo.Upsert(m))

	got, err = repo.Get("com.instagram.android")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m, *got)

	// Upsert replaces in place.
	m.Blocked = true
	require.NoError(t, repo.Upsert(m))
	got, err = repo.Get("com.instagram.android")
	require.NoError(t, err)
	assert.True(t, got.Blocked)

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	byCat, err := repo.GetByCategory(domain.CategorySocialMedia)
	require.NoError(t, err)
	assert.Len(t, byCat, 1)
	byCat, err = repo.GetByCategory(domain.CategoryGames)
	require.NoError(t, err)
	assert.Empty(t, byCat)

	require.NoError(t, repo.Delete("com.instagram.android"))
	got, err = repo.Get("com.instagram.android")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAgreementRepo_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	repo := store.Agreements()

	created := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	a := domain.Agreement{
		ID:             "agr-1",
		AppID:          "com.instagram.android",
		Category:       domain.CategorySocialMedia,
		AgreedDuration: 20 * time.Minute,
		CreatedAt:      created,
		ExpiresAt:      created.Add(20 * time.Minute),
		Status:         domain.AgreementActive,
		ConversationID: "conv-1",
	}
	require.NoError(t, repo.Insert(a))

	got, err := repo.Get("agr-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.AgreedDuration, got.AgreedDuration)
	assert.True(t, got.ExpiresAt.Equal(a.ExpiresAt))
	assert.True(t, got.WarnedAt.IsZero())
	assert.True(t, got.ViolatedAt.IsZero())

	active, err := repo.GetActive()
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// Status transition drops it from the active set.
	a.Status = domain.AgreementViolated
	a.ViolatedAt = created.Add(21 * time.Minute)
	require.NoError(t, repo.Update(a))

	active, err = repo.GetActive()
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err = repo.Get("agr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgreementViolated, got.Status)
	assert.True(t, got.ViolatedAt.Equal(a.ViolatedAt))

	missing, err := repo.Get("no-such")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAgreementRepo_AuditTrail(t *testing.T) {
	store := newTestStore(t)
	repo := store.Agreements()

	at := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	first := domain.AuditEntry{
		AgreementID:  "agr-1",
		OldExpiresAt: at,
		NewExpiresAt: at.Add(10 * time.Minute),
		Reason:       "extension requested",
		At:           at,
	}
	second := first
	second.OldExpiresAt = first.NewExpiresAt
	second.NewExpiresAt = first.NewExpiresAt.Add(5 * time.Minute)
	second.At = at.Add(8 * time.Minute)

	require.NoError(t, repo.AppendAudit(first))
	require.NoError(t, repo.AppendAudit(second))

	trail, err := repo.AuditFor("agr-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.True(t, trail[0].At.Before(trail[1].At))
	assert.Equal(t, "extension requested", trail[0].Reason)

	other, err := repo.AuditFor("agr-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestInterventionRepo_LastForChannel(t *testing.T) {
	store := newTestStore(t)
	repo := store.Interventions()

	none, err := repo.LastForChannel("app:com.instagram.android")
	require.NoError(t, err)
	assert.Nil(t, none)

	base := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	for i, ch := range []string{"app:com.instagram.android", "device", "app:com.instagram.android"} {
		require.NoError(t, repo.Append(domain.InterventionRecord{
			ID:      string(rune('a' + i)),
			At:      base.Add(time.Duration(i) * time.Minute),
			Channel: ch,
			Action:  domain.ActionNegotiate,
		}))
	}

	last, err := repo.LastForChannel("app:com.instagram.android")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "c", last.ID)

	recent, err := repo.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)

	require.NoError(t, repo.DeleteOlderThan(base.Add(90*time.Second)))
	recent, err = repo.Recent(10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestSampleRepo_TotalsBetween(t *testing.T) {
	store := newTestStore(t)
	repo := store.Samples()

	base := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	samples := []domain.UsageSample{
		{AppID: "chrome", WindowStart: base, WindowEnd: base.Add(2 * time.Second), Foreground: 2 * time.Second},
		{AppID: "chrome", WindowStart: base.Add(2 * time.Second), WindowEnd: base.Add(4 * time.Second), Foreground: 2 * time.Second},
		{AppID: "slack", WindowStart: base.Add(4 * time.Second), WindowEnd: base.Add(6 * time.Second), Foreground: 2 * time.Second},
		// Outside the queried window.
		{AppID: "chrome", WindowStart: base.Add(time.Hour), WindowEnd: base.Add(time.Hour + 2*time.Second), Foreground: 2 * time.Second},
	}
	for _, s := range samples {
		require.NoError(t, repo.Record(s))
	}

	totals, err := repo.TotalsBetween(base, base.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, totals["chrome"])
	assert.Equal(t, 2*time.Second, totals["slack"])

	require.NoError(t, repo.DeleteOlderThan(base.Add(30*time.Minute)))
	totals, err = repo.TotalsBetween(base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, totals["chrome"])
	assert.NotContains(t, totals, "slack")
}

func TestEncryptedStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewEncryptedStore(dir, key)
	require.NoError(t, err)
	require.NoError(t, store.Mappings().Upsert(domain.CategoryMapping{
		AppID:    "com.example.app",
		Category: domain.CategoryGames,
		AddedBy:  domain.AuthorityUser,
	}))
	require.NoError(t, store.Close())

	reopened, err := NewEncryptedStore(dir, key)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Mappings().Get("com.example.app")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.CategoryGames, got.Category)
	assert.Equal(t, domain.AuthorityUser, got.AddedBy)
}
