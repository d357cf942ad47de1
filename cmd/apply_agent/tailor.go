package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-agent/internal/session"
	"github.com/jonathan/apply-agent/internal/tailoring"
)

var tailorCmd = &cobra.Command{
	Use:   "tailor",
	Short: "Tailor the master resume to a job description",
	Long: `Runs the tailor/review convergence loop for a job description read from a file.
Exports are written only once the reviewer has passed the resume; --use also saves
it as the active resume.`,
	RunE: runTailor,
}

var (
	tailorJD           string
	tailorTitle        string
	tailorResume       string
	tailorInstructions string
	tailorFormats      []string
	tailorOut          string
	tailorUse          bool
	tailorExtraRounds  int
)

func init() {
	tailorCmd.Flags().StringVarP(&tailorJD, "jd", "j", "", "Path to the job description text (required)")
	tailorCmd.Flags().StringVarP(&tailorTitle, "title", "t", "", "Job title")
	tailorCmd.Flags().StringVarP(&tailorResume, "resume", "r", "", "Master resume text file (overrides resume_path)")
	tailorCmd.Flags().StringVar(&tailorInstructions, "instructions", "", "Extra instructions for the tailoring service")
	tailorCmd.Flags().StringSliceVarP(&tailorFormats, "format", "f", []string{"pdf", "txt"}, "Export formats: pdf, docx, txt")
	tailorCmd.Flags().StringVarP(&tailorOut, "out", "o", "", "Export directory (overrides export_dir)")
	tailorCmd.Flags().BoolVar(&tailorUse, "use", false, "Save the result as the active resume")
	tailorCmd.Flags().IntVar(&tailorExtraRounds, "extra-rounds", 0, "Additional review rounds while the reviewer has not passed")
	_ = tailorCmd.MarkFlagRequired("jd")

	rootCmd.AddCommand(tailorCmd)
}

func runTailor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("out") {
		a.cfg.ExportDir = tailorOut
	}
	if cmd.Flags().Changed("extra-rounds") {
		a.cfg.Tailoring.ExtraReviewRounds = tailorExtraRounds
	}
	instructions := a.cfg.Tailoring.Instructions
	if cmd.Flags().Changed("instructions") {
		instructions = tailorInstructions
	}

	formats := make([]tailoring.Format, 0, len(tailorFormats))
	for _, f := range tailorFormats {
		format, err := tailoring.ParseFormat(f)
		if err != nil {
			return err
		}
		formats = append(formats, format)
	}

	jdText, err := os.ReadFile(tailorJD)
	if err != nil {
		return fmt.Errorf("failed to read job description: %w", err)
	}
	resume, err := a.resumeText(tailorResume)
	if err != nil {
		return err
	}

	repo, err := a.repository(ctx)
	if err != nil {
		return err
	}

	sess := session.New()
	jd, err := sess.LoadPasted(tailorTitle, string(jdText))
	if err != nil {
		return err
	}

	r, err := a.loop(repo, a.printer.PrintTailoringEvent).Run(ctx, resume, jd, instructions)
	if err != nil {
		return err
	}
	a.printer.PrintTailoredResume(r)

	return exportResume(ctx, a, tailoring.NewExporter(repo, a.logger), r, formats, tailorUse)
}

// exportResume writes every format and optionally saves the active resume.
// A closed gate fails before anything is written.
func exportResume(ctx context.Context, a *app, exp *tailoring.Exporter, r *tailoring.TailoredResume, formats []tailoring.Format, use bool) error {
	if err := r.RequireReviewerPassed("export"); err != nil {
		return err
	}

	var errs []error
	for _, f := range formats {
		path, err := exp.Download(r, f, a.cfg.ExportDir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(a.out, "Saved %s\n", path)
	}

	if use {
		snap, err := exp.Use(ctx, r)
		if err != nil {
			errs = append(errs, err)
		} else {
			fmt.Fprintf(a.out, "Active resume set (%s, ATS %d)\n", strings.TrimSpace(snap.JobTitle), snap.Scores.ATS)
		}
	}
	return errors.Join(errs...)
}
