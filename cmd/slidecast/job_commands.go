package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"slidecast/internal/api"
	"slidecast/internal/config"
	"slidecast/internal/daemon"
	"slidecast/internal/daemonrun"
	"slidecast/internal/deck"
	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/queueaccess"
	"slidecast/internal/stageexec"
	"slidecast/internal/transcript"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Submit and manage conversion jobs",
	}

	jobCmd.AddCommand(newJobStartCommand(ctx))
	jobCmd.AddCommand(newJobRunCommand(ctx))
	jobCmd.AddCommand(newJobStatusCommand(ctx))
	jobCmd.AddCommand(newJobResultCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobRetryCommand(ctx))
	jobCmd.AddCommand(newJobRerunCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobClearCommand(ctx))
	jobCmd.AddCommand(newJobScriptCommand(ctx))

	return jobCmd
}

type startFlags struct {
	title          string
	style          string
	quality        string
	gender         string
	sourceLanguage string
	targetLanguage string
}

func (f *startFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Lecture title (defaults to the file name)")
	cmd.Flags().StringVar(&f.style, "style", "", "Narration style (see `slidecast styles`)")
	cmd.Flags().StringVar(&f.quality, "quality", "", "Voice quality: premium or standard")
	cmd.Flags().StringVar(&f.gender, "gender", "", "Voice gender: female or male")
	cmd.Flags().StringVar(&f.sourceLanguage, "source-lang", "", "Language of the narration")
	cmd.Flags().StringVarP(&f.targetLanguage, "target-lang", "t", "", "Language of the spoken lecture")
}

func (f *startFlags) request(source string) (api.StartRequest, error) {
	path, err := config.ExpandPath(strings.TrimSpace(source))
	if err != nil {
		return api.StartRequest{}, err
	}
	return api.StartRequest{
		Source:         path,
		Title:          f.title,
		Style:          f.style,
		VoiceQuality:   f.quality,
		VoiceGender:    f.gender,
		SourceLanguage: f.sourceLanguage,
		TargetLanguage: f.targetLanguage,
	}, nil
}

func newJobStartCommand(ctx *commandContext) *cobra.Command {
	var flags startFlags
	cmd := &cobra.Command{
		Use:   "start <deck>",
		Short: "Queue a deck (.pptx, .ppt, deck.json or an extracted deck directory)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				id, err := access.Start(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.StartResponse{ID: id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s\n", id)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newJobRunCommand(ctx *commandContext) *cobra.Command {
	var flags startFlags
	cmd := &cobra.Command{
		Use:   "run <deck>",
		Short: "Convert a deck in the foreground without the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := api.NewJobService(cfg, store).StartJob(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running job %s\n", id)

			var lastStatus queue.Status
			job, err := stageexec.Run(cmd.Context(), id, stageexec.Options{
				Config:    cfg,
				Logger:    logger,
				Store:     store,
				Stages:    daemonrun.Stages(cfg, store, logger),
				LockPath:  daemon.LockPath(cfg),
				Preflight: true,
				Progress: func(j *queue.Job) {
					if j.Status != lastStatus {
						lastStatus = j.Status
						fmt.Fprintf(out, "  %-13s %5.1f%%\n", j.Status, j.Status.PipelinePercent())
					}
				},
			})
			if err != nil {
				return err
			}
			dto := api.FromJob(job)
			if job.Status != queue.StatusCompleted {
				return fmt.Errorf("job %s %s: %s", shortJobID(id), job.Status, formatFailure(dto))
			}
			result, err := api.NewJobService(cfg, store).GetResult(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printResult(cmd, ctx, result)
		},
	}
	flags.register(cmd)
	return cmd
}

func newJobStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show per-slide progress for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				job, err := access.Describe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				status, err := access.Status(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobDetailResponse{Job: *job, Status: status})
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Job %s  %s\n", job.ID, displayTitle(*job))
				fmt.Fprintf(out, "Status:   %s (%s, %.0f%%)\n", colorStatus(job.Status, colorize), status.Stage, status.Progress)
				fmt.Fprintf(out, "Language: %s → %s   Style: %s   Voice: %s/%s\n",
					job.SourceLanguage, job.TargetLanguage, job.Style, job.VoiceQuality, job.VoiceGender)
				if status.Message != "" {
					fmt.Fprintf(out, "Message:  %s\n", status.Message)
				}
				if job.Status == string(queue.StatusFailed) {
					fmt.Fprintf(out, "Failure:  %s\n", formatFailure(*job))
				}
				if len(status.Slides) == 0 {
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Slide", "Narrated", "Translated", "Audio", "Duration", "Warnings"},
					buildSlideRows(status.Slides),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					colorize,
				))
				return nil
			})
		},
	}
}

func newJobResultCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "result <id>",
		Short: "Show the artifacts of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				result, err := access.Result(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printResult(cmd, ctx, result)
			})
		},
	}
}

func printResult(cmd *cobra.Command, ctx *commandContext, result api.JobResult) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, result)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Video:    %s\n", result.VideoPath)
	fmt.Fprintf(out, "Duration: %s\n", transcript.Timestamp(result.DurationSeconds))
	if result.ManifestPath != "" {
		fmt.Fprintf(out, "Manifest: %s\n", result.ManifestPath)
	}
	if result.ScriptPath != "" {
		fmt.Fprintf(out, "Script:   %s\n", result.ScriptPath)
	}
	fmt.Fprintf(out, "Audio:    %s\n", result.AudioDir)
	fmt.Fprintf(out, "Images:   %s\n", result.ImageDir)
	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "Warnings (%d):\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "  slide %d [%s] %s\n", w.Index+1, w.Stage, w.Message)
		}
	}
	return nil
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := queueaccess.ParseStatuses(statuses); err != nil {
				return err
			}
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				jobs, err := access.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				colorize := shouldColorize(out)
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Title", "Status", "Language", "Slides", "Progress", "Created"},
					buildJobListRows(jobs, colorize),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
					colorize,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newJobRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Resume failed or cancelled jobs from the stage they stopped in",
		Long:  "Resume failed or cancelled jobs. With no ids every failed or cancelled job is retried.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				result, err := access.Retry(cmd.Context(), args)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					fmt.Fprintf(out, "Retried %d jobs\n", result.UpdatedCount)
					return nil
				}
				for _, item := range result.Items {
					switch item.Outcome {
					case api.RetryJobUpdated:
						fmt.Fprintf(out, "Job %s resumes at %s\n", item.ID, item.NewStatus)
					case api.RetryJobNotFound:
						fmt.Fprintf(out, "Job %s not found\n", item.ID)
					default:
						fmt.Fprintf(out, "Job %s is not failed or cancelled\n", item.ID)
					}
				}
				return nil
			})
		},
	}
}

func newJobRerunCommand(ctx *commandContext) *cobra.Command {
	var req api.RerunRequest
	cmd := &cobra.Command{
		Use:   "rerun <id>",
		Short: "Re-voice a narrated job in another language or voice without regenerating narration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				id, err := access.Rerun(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.StartResponse{ID: id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s from the narration of %s\n", id, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&req.TargetLanguage, "target-lang", "t", "", "New target language")
	cmd.Flags().StringVar(&req.VoiceGender, "gender", "", "New voice gender")
	cmd.Flags().StringVar(&req.VoiceQuality, "quality", "", "New voice quality")
	return cmd
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>...",
		Short: "Cancel queued or running jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				results := make([]api.CancelJobResult, 0, len(args))
				for _, id := range args {
					result, err := access.Cancel(cmd.Context(), id)
					if err != nil {
						return err
					}
					results = append(results, result)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, results)
				}
				out := cmd.OutOrStdout()
				for _, r := range results {
					switch r.Outcome {
					case api.CancelJobUpdated:
						fmt.Fprintf(out, "Cancelled job %s (was %s)\n", r.ID, r.PriorStatus)
					case api.CancelJobNotFound:
						fmt.Fprintf(out, "Job %s not found\n", r.ID)
					default:
						fmt.Fprintf(out, "Job %s left alone: %s\n", r.ID, strings.ReplaceAll(string(r.Outcome), "_", " "))
					}
				}
				return nil
			})
		},
	}
}

func newJobClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access queueaccess.Access) error {
				removed, err := access.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.ClearResponse{Removed: removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed jobs\n", removed)
				return nil
			})
		},
	}
}

func newJobScriptCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string
	cmd := &cobra.Command{
		Use:   "script <id>",
		Short: "Export the narration script of a job as JSON or docx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := findJob(cmd, store, args[0])
			if err != nil {
				return err
			}
			d, err := deck.Decode(job.DeckJSON)
			if err != nil {
				return fmt.Errorf("job %s has no readable deck: %w", job.ID, err)
			}
			if len(d.Slides) == 0 {
				return fmt.Errorf("job %s has not been extracted yet", job.ID)
			}

			switch strings.ToLower(strings.TrimSpace(format)) {
			case "", "json":
				entries := scriptEntries(transcript.Entries(d))
				if err := writeJSONFile(cmd, output, entries); err != nil {
					return err
				}
				if output == "" || output == "-" {
					return nil
				}
			case "docx":
				if output == "" {
					output = filepath.Join(".", fmt.Sprintf("%s-script.docx", shortJobID(job.ID)))
				}
				if err := transcript.Write(output, d.Title, d); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported script format %q (use json or docx)", format)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Script format: json or docx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (json defaults to stdout)")
	return cmd
}

func findJob(cmd *cobra.Command, store *queue.Store, id string) (*queue.Job, error) {
	job, err := store.GetByID(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if job != nil {
		return job, nil
	}
	job, err = store.FindByPrefix(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w %q", api.ErrJobNotFound, id)
	}
	return job, nil
}
