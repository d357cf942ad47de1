package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/autopilot"
	"github.com/jonathan/apply-agent/internal/page"
	"github.com/jonathan/apply-agent/internal/session"
	"github.com/jonathan/apply-agent/internal/tailoring"
)

var autopilotCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Fill and submit a job application",
	Long: `Opens the application page in Chrome, reads the job description, and steps through
the application: fill the visible fields, advance, and submit. The run pauses when a
field has no known answer.

Tailoring runs in the background by default; --tailoring blocking waits for a resume
the reviewer passed before touching the page.`,
	RunE: runAutopilot,
}

var (
	autopilotURL       string
	autopilotTailoring string
	autopilotMaxSteps  int
	autopilotHeadless  bool
	autopilotResume    string
)

func init() {
	autopilotCmd.Flags().StringVarP(&autopilotURL, "url", "u", "", "Application page URL (required)")
	autopilotCmd.Flags().StringVar(&autopilotTailoring, "tailoring", "", "Tailoring mode: disabled, background or blocking")
	autopilotCmd.Flags().IntVar(&autopilotMaxSteps, "max-steps", 0, "Step ceiling (at most 10)")
	autopilotCmd.Flags().BoolVar(&autopilotHeadless, "headless", false, "Run Chrome without a window")
	autopilotCmd.Flags().StringVarP(&autopilotResume, "resume", "r", "", "Master resume text file (overrides resume_path)")
	_ = autopilotCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(autopilotCmd)
}

func runAutopilot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("tailoring") {
		a.cfg.Autopilot.Tailoring = autopilotTailoring
	}
	if cmd.Flags().Changed("max-steps") {
		a.cfg.Autopilot.MaxSteps = autopilotMaxSteps
	}
	if cmd.Flags().Changed("headless") {
		a.cfg.Autopilot.Headless = autopilotHeadless
	}

	opts, err := a.cfg.AutopilotOptions()
	if err != nil {
		return err
	}

	repo, err := a.repository(ctx)
	if err != nil {
		return err
	}

	var tailor autopilot.Tailorer
	if opts.TailoringMode != autopilot.TailoringDisabled {
		text, err := a.resumeText(autopilotResume)
		if err != nil {
			return fmt.Errorf("%w (or use --tailoring disabled)", err)
		}
		opts.ResumeText = text
		tailor = a.loop(repo, a.printer.PrintTailoringEvent)
	}
	opts.History = repo
	opts.Logger = a.logger
	opts.OnProgress = a.printer.PrintAutopilotEvent

	bopts, err := a.browserOptions(autopilotURL)
	if err != nil {
		return err
	}
	browser, err := page.NewBrowser(ctx, bopts)
	if err != nil {
		return err
	}
	defer browser.Close()

	return driveAutopilot(ctx, a, browser, tailor, opts)
}

// driveAutopilot runs the engine and prints the outcome. A paused run is not an error.
func driveAutopilot(ctx context.Context, a *app, p page.Automator, tailor autopilot.Tailorer, opts autopilot.Options) error {
	sess := session.New()
	res, err := autopilot.NewEngine(p, tailor, sess, opts).Run(ctx)
	a.printer.PrintAutopilotResult(res, err)

	resume := res.Resume
	if resume == nil && res.TailoringErr == nil && res.Tailoring != nil {
		// The outcome is already on screen; only the resume is still pending.
		fmt.Fprintln(a.out, "Waiting for background tailoring to finish...")
		r, terr := res.Tailoring.Wait(ctx)
		if terr != nil {
			fmt.Fprintf(a.out, "Tailoring failed: %v\n", terr)
		}
		resume = r
	}

	if resume != nil {
		a.printer.PrintTailoredResume(resume)
		if resume.ReviewerPassed() {
			path, derr := tailoring.NewExporter(nil, a.logger).Download(resume, tailoring.FormatPDF, a.cfg.ExportDir)
			if derr != nil {
				a.logger.Warn("export failed", zap.Error(derr))
			} else {
				fmt.Fprintf(a.out, "Saved %s\n", path)
			}
		}
	}

	if errors.Is(err, autopilot.ErrEndedWithoutSubmit) {
		return fmt.Errorf("application was not submitted")
	}
	return err
}
