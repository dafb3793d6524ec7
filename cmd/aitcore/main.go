package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	dbsqlite "github.com/Jjjmaes/AIT-sub000/internal/adapters/db/sqlite"
	llmfactory "github.com/Jjjmaes/AIT-sub000/internal/adapters/llm/factory"
	promptbuilder "github.com/Jjjmaes/AIT-sub000/internal/adapters/prompt"
	"github.com/Jjjmaes/AIT-sub000/internal/config"
	"github.com/Jjjmaes/AIT-sub000/internal/domain"
	"github.com/Jjjmaes/AIT-sub000/internal/logging"
	"github.com/Jjjmaes/AIT-sub000/internal/usecase/coordinator"
	"github.com/Jjjmaes/AIT-sub000/internal/usecase/queue"
	"github.com/Jjjmaes/AIT-sub000/internal/usecase/tm"
	"github.com/Jjjmaes/AIT-sub000/internal/usecase/translator"
)

// services bundles everything the commands need, wired once per process.
type services struct {
	db          *sql.DB
	log         *slog.Logger
	cfg         config.Config
	segments    *dbsqlite.SegmentRepo
	files       *dbsqlite.FileRepo
	projects    *dbsqlite.ProjectRepo
	providers   *dbsqlite.ProviderConfigRepo
	tmEngine    *tm.Engine
	queue       *queue.Service
	translator  *translator.Service
	coordinator *coordinator.Service
}

func buildServices() (*services, error) {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	db, err := dbsqlite.Init(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	segmentRepo := dbsqlite.NewSegmentRepo(db)
	fileRepo := dbsqlite.NewFileRepo(db)
	projectRepo := dbsqlite.NewProjectRepo(db)
	providerRepo := dbsqlite.NewProviderConfigRepo(db)
	templateRepo := dbsqlite.NewTemplateRepo(db)
	terminologyRepo := dbsqlite.NewTerminologyRepo(db)
	tmRepo := dbsqlite.NewTMRepo(db)
	jobRepo := dbsqlite.NewJobRepo(db)

	tmEngine := tm.NewEngine(tmRepo, tm.LevenshteinScorer{}, log)
	builder := promptbuilder.New(templateRepo, log)
	factory := llmfactory.New(cfg.Provider.CallTimeout)

	queueSvc := queue.NewService(jobRepo, queue.RetryPolicy{
		MaxAttempts: cfg.Queue.MaxAttempts,
		Backoff:     cfg.Queue.Backoff(),
	}, log)

	coordSvc := coordinator.New(coordinator.Deps{
		Projects: projectRepo,
		Files:    fileRepo,
		Segments: segmentRepo,
		Queue:    queueSvc,
		Log:      log,
	})

	transSvc := translator.New(translator.Deps{
		Segments:      segmentRepo,
		Files:         fileRepo,
		Projects:      projectRepo,
		Providers:     providerRepo,
		Terminologies: terminologyRepo,
		TM:            tmEngine,
		Prompt:        builder,
		Factory:       factory,
		Progress:      coordSvc,
		Log:           log,
		CallTimeout:   cfg.Provider.CallTimeout,
	})

	return &services{
		db:          db,
		log:         log,
		cfg:         cfg,
		segments:    segmentRepo,
		files:       fileRepo,
		projects:    projectRepo,
		providers:   providerRepo,
		tmEngine:    tmEngine,
		queue:       queueSvc,
		translator:  transSvc,
		coordinator: coordSvc,
	}, nil
}

func main() {
	root := &cobra.Command{
		Use:           "aitcore",
		Short:         "Translation orchestration core: queued AI translation with TM and terminology",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(workerCmd(), translateCmd(), tmxCmd(), jobCmd(), providerCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run queue workers until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			defer svc.db.Close()
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			svc.queue.RunWorkers(ctx, svc.cfg.Queue.Workers, svc.cfg.Queue.PollInterval, queue.ExecutorDeps{
				Segments:   svc.segments,
				Files:      svc.files,
				Translator: svc.translator,
				Progress:   svc.coordinator,
			})
			svc.log.Info("workers running", "count", svc.cfg.Queue.Workers)
			<-ctx.Done()
			svc.log.Info("shutting down")
			return nil
		},
	}
}

func translateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "translate", Short: "Submit translation jobs"}

	var projectID, fileID, aiConfigID, templateID int64
	var actor, sourceLang, targetLang, domainName, model string

	addCommon := func(c *cobra.Command) {
		c.Flags().Int64Var(&projectID, "project", 0, "project id")
		c.Flags().Int64Var(&aiConfigID, "ai-config", 0, "AI provider config id")
		c.Flags().Int64Var(&templateID, "template", 0, "prompt template id (0 = builtin)")
		c.Flags().StringVar(&actor, "actor", "cli", "submitting user")
		c.Flags().StringVar(&sourceLang, "source", "", "source language override")
		c.Flags().StringVar(&targetLang, "target", "", "target language override")
		c.Flags().StringVar(&domainName, "domain", "", "subject domain")
		c.Flags().StringVar(&model, "model", "", "model override")
	}

	opts := func() domain.JobOptions {
		return domain.JobOptions{
			SourceLanguage: sourceLang,
			TargetLanguage: targetLang,
			Domain:         domainName,
			AIModel:        model,
		}
	}
	tplPtr := func() *int64 {
		if templateID == 0 {
			return nil
		}
		return &templateID
	}

	fileCmd := &cobra.Command{
		Use:   "file",
		Short: "Submit one file for translation",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			defer svc.db.Close()
			jobID, err := svc.coordinator.TranslateFile(cmd.Context(), projectID, fileID, actor, aiConfigID, tplPtr(), opts())
			if err != nil {
				return err
			}
			if jobID == "" {
				fmt.Println("nothing to do")
				return nil
			}
			fmt.Println(jobID)
			return nil
		},
	}
	addCommon(fileCmd)
	fileCmd.Flags().Int64Var(&fileID, "file", 0, "file id")

	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Submit every extracted file of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			defer svc.db.Close()
			jobID, err := svc.coordinator.TranslateProject(cmd.Context(), projectID, actor, aiConfigID, tplPtr(), opts())
			if err != nil {
				return err
			}
			fmt.Println(jobID)
			return nil
		},
	}
	addCommon(projectCmd)

	cmd.AddCommand(fileCmd, projectCmd)
	return cmd
}

func tmxCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tmx", Short: "Import or export translation memory"}

	var path string
	var projectID int64
	var actor, sourceLang, targetLang string

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import a TMX file into the translation memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			defer svc.db.Close()
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			report, err := svc.tmEngine.ImportTMX(cmd.Context(), content, projectPtr(projectID), actor)
			if err != nil {
				return err
			}
			fmt.Printf("units=%d added=%d updated=%d skipped=%d\n",
				report.TotalUnits, report.AddedCount, report.UpdatedCount, report.SkippedCount)
			for _, e := range report.Errors {
				fmt.Println("  " + e)
			}
			return nil
		},
	}
	importCmd.Flags().StringVar(&path, "file", "", "TMX file path")
	importCmd.Flags().Int64Var(&projectID, "project", 0, "project scope (0 = global)")
	importCmd.Flags().StringVar(&actor, "actor", "cli", "importing user")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the translation memory for a language pair as TMX",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			defer svc.db.Close()
			out, err := svc.tmEngine.ExportTMX(cmd.Context(), sourceLang, targetLang, projectPtr(projectID))
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Println(string(out))
				return nil
			}
			return os.WriteFile(path, out, 0o644)
		},
	}
	exportCmd.Flags().StringVar(&path, "out", "", "output path (default stdout)")
	exportCmd.Flags().Int64Var(&projectID, "project", 0, "project scope (0 = global)")
	exportCmd.Flags().StringVar(&sourceLang, "source", "", "source language")
	exportCmd.Flags().StringVar(&targetLang, "target", "", "target language")

	cmd.AddCommand(importCmd, exportCmd)
	return cmd
}

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "job", Short: "Inspect or cancel jobs"}

	statusCmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			defer svc.db.Close()
			st, err := svc.queue.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("job=%s status=%s progress=%d/%d attempts=%d\n",
				st.JobID, st.Status, st.Progress, st.Total, st.Attempts)
			if st.FailedReason != "" {
				fmt.Println("reason: " + st.FailedReason)
			}
			return nil
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a waiting, delayed or active job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			defer svc.db.Close()
			return svc.queue.Cancel(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(statusCmd, cancelCmd)
	return cmd
}

func providerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "provider", Short: "Provider config utilities"}

	var id int64
	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Check connectivity and list models for a provider config",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			defer svc.db.Close()
			cfg, err := svc.providers.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if cfg == nil {
				return domain.NotFoundError("provider config", id)
			}
			adapter, err := llmfactory.New(svc.cfg.Provider.CallTimeout).FromConfig(cfg)
			if err != nil {
				return err
			}
			models, err := adapter.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Println(m.Name)
			}
			return nil
		},
	}
	testCmd.Flags().Int64Var(&id, "id", 0, "provider config id")

	cmd.AddCommand(testCmd)
	return cmd
}

func projectPtr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
