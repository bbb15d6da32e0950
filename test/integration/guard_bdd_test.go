//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/infra"
	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/usecase"
	"github.com/krisyupher/Focus-MotherFocus-sub003/test/fixtures"
)

const subjectApp = "com.instagram.android"

var _ = Describe("Guard control loop", func() {
	var (
		tmpDir     string
		store      *infra.EncryptedStore
		source     *fixtures.ScriptedUsageSource
		sink       *fixtures.CapturingSink
		controller *fixtures.RecordingController
		oracle     *fixtures.ScriptedOracle
		engine     *usecase.Engine
		lifecycle  *usecase.Lifecycle
		guard      *usecase.Guard
		ctx        context.Context
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "focusguard-integration-*")
		Expect(err).NotTo(HaveOccurred())

		key, err := infra.GenerateKey()
		Expect(err).NotTo(HaveOccurred())
		store, err = infra.NewEncryptedStore(tmpDir, key)
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		ctx = context.Background()

		classifier := usecase.NewClassifier(store.Mappings(), logger)
		Expect(classifier.Seed()).To(Succeed())
		Expect(classifier.UserCategorize(subjectApp, domain.CategorySocialMedia)).To(Succeed())
		// Tiny threshold so the scripted foreground breaches immediately.
		Expect(classifier.SetCustomThreshold(subjectApp, 100*time.Millisecond)).To(Succeed())

		source = fixtures.NewScriptedUsageSource()
		sink = &fixtures.CapturingSink{}
		controller = &fixtures.RecordingController{}
		oracle = fixtures.NewScriptedOracle(
			"You have been scrolling a while. How much longer do you need?",
			"Alright, how about that as a hard stop?",
			"Deal. The timer starts now.",
		)

		detectorCfg := usecase.DetectorConfig{
			DeviceWindow:     time.Hour,
			DeviceThreshold:  time.Hour,
			SustainedPattern: 0,
		}
		lifecycleCfg := usecase.LifecycleConfig{
			YellowBand:  500 * time.Millisecond,
			RedBand:     200 * time.Millisecond,
			WarningLead: 300 * time.Millisecond,
			Grace:       150 * time.Millisecond,
		}

		detector := usecase.NewDetector(source, classifier, detectorCfg, logger)
		trigger := usecase.NewTrigger(store.Interventions(), sink,
			usecase.TriggerConfig{Cooldown: 50 * time.Millisecond}, logger)
		engine = usecase.NewEngine(oracle, usecase.DefaultEngineConfig(), logger)
		lifecycle = usecase.NewLifecycle(store.Agreements(), source, controller, sink,
			trigger.Rearm, lifecycleCfg, logger)
		guard = usecase.NewGuard(source, store.Samples(), detector, trigger, engine,
			lifecycle, store.Interventions(), 10*time.Millisecond, logger)
	})

	AfterEach(func() {
		store.Close()
		os.RemoveAll(tmpDir)
	})

	Describe("breach to negotiated agreement", func() {
		It("opens a negotiation and enforces the agreed duration", func() {
			source.SetForeground(subjectApp, 200*time.Millisecond)

			Expect(guard.OnTick(ctx)).To(Succeed())

			// The intervention and the oracle's opener both reached the sink.
			Expect(sink.All()).NotTo(BeEmpty())

			session := engine.ActiveForSubject("app:" + subjectApp)
			Expect(session).NotTo(BeNil())

			result, err := guard.SubmitUserReply(ctx, session.ID, "1 second")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.State.Phase).To(Equal(domain.PhaseProposed))
			Expect(result.State.Proposed).To(Equal(time.Second))

			result, err = guard.SubmitUserReply(ctx, session.ID, "deal")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.State.Phase).To(Equal(domain.PhaseAgreed))

			active, err := store.Agreements().GetActive()
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(1))
			agreement := active[0]
			Expect(agreement.AppID).To(Equal(subjectApp))
			Expect(agreement.AgreedDuration).To(Equal(time.Second))

			// The app stays in the foreground past expiry and grace, so
			// enforcement must warn once, then force a close and record a
			// violation.
			Eventually(func() domain.AgreementStatus {
				_ = guard.OnEnforcementTick(ctx)
				a, err := store.Agreements().Get(agreement.ID)
				if err != nil || a == nil {
					return ""
				}
				return a.Status
			}, "3s", "20ms").Should(Equal(domain.AgreementViolated))

			final, err := store.Agreements().Get(agreement.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(final.WarnedAt.IsZero()).To(BeFalse(), "warning should have fired before expiry")
			Expect(controller.Closed()).To(ContainElement(subjectApp))
		})

		It("completes the agreement when the user leaves during grace", func() {
			agreement, err := lifecycle.Create(subjectApp, domain.CategorySocialMedia,
				100*time.Millisecond, "conv-test")
			Expect(err).NotTo(HaveOccurred())

			// A different app is in front when the timer runs out.
			source.SetForeground("com.slack.android", time.Minute)

			Eventually(func() domain.AgreementStatus {
				_ = guard.OnEnforcementTick(ctx)
				a, err := store.Agreements().Get(agreement.ID)
				if err != nil || a == nil {
					return ""
				}
				return a.Status
			}, "2s", "20ms").Should(Equal(domain.AgreementCompleted))

			Expect(controller.Closed()).To(BeEmpty())
		})

		It("rejects a second negotiation for the same subject", func() {
			source.SetForeground(subjectApp, 200*time.Millisecond)
			Expect(guard.OnTick(ctx)).To(Succeed())

			first := engine.ActiveForSubject("app:" + subjectApp)
			Expect(first).NotTo(BeNil())

			_, _, err := engine.Open(ctx, subjectApp, domain.CategorySocialMedia, "", "another breach")
			Expect(err).To(MatchError(domain.ErrSessionConflict))
		})
	})

	Describe("negotiated extension", func() {
		It("extends an active agreement and audits the change", func() {
			agreement, err := lifecycle.Create(subjectApp, domain.CategorySocialMedia,
				10*time.Second, "conv-test")
			Expect(err).NotTo(HaveOccurred())
			originalExpiry := agreement.ExpiresAt

			session, _, err := guard.RequestExtension(ctx, agreement.ID, "I need more time")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.ExtendsID).To(Equal(agreement.ID))

			result, err := guard.SubmitUserReply(ctx, session.ID, "2 seconds")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.State.Phase).To(Equal(domain.PhaseProposed))

			result, err = guard.SubmitUserReply(ctx, session.ID, "ok")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.State.Phase).To(Equal(domain.PhaseAgreed))

			extended, err := store.Agreements().Get(agreement.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(extended.ExpiresAt).To(BeTemporally(">", originalExpiry))

			trail, err := store.Agreements().AuditFor(agreement.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(trail).To(HaveLen(1))
			Expect(trail[0].NewExpiresAt).To(BeTemporally(">", trail[0].OldExpiresAt))
		})
	})

	Describe("permission handling", func() {
		It("reports denied usage access instead of fabricating data", func() {
			source.SetPermission(false)
			err := guard.OnTick(ctx)
			Expect(err).To(MatchError(domain.ErrPermissionDenied))
		})
	})
})
