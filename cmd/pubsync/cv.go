package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/juyoungml/pubsync/internal/cv"
)

var (
	cvSource string
	cvPDF    string
	cvOutput string
)

func init() {
	cvCmd.Flags().StringVar(&cvSource, "source", "", "Typst CV source (overrides config)")
	cvCmd.Flags().StringVar(&cvPDF, "pdf", "", "Compiled CV, read when the Typst source is absent (overrides config)")
	cvCmd.Flags().StringVarP(&cvOutput, "output", "o", "", "cv-sync.json destination (overrides config)")
	rootCmd.AddCommand(cvCmd)
}

var cvCmd = &cobra.Command{
	Use:   "cv",
	Short: "Extract CV metadata into cv-sync.json",
	Long: `Extract name, email and publication count from the CV and write the
cv-sync.json document consumed by the website.

The Typst source is preferred; the compiled PDF is read when the source
does not exist.`,
	Args: cobra.NoArgs,
	RunE: runCV,
}

// CVResult is the response for the cv command.
type CVResult struct {
	Status string      `json:"status"`
	Source string      `json:"source"`
	Output string      `json:"output"`
	Sync   cv.Sync     `json:"sync"`
	Meta   cv.Metadata `json:"metadata"`
}

func runCV(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	if cvSource != "" {
		cfg.CV.Source = cvSource
	}
	if cvPDF != "" {
		cfg.CV.PDFPath = cvPDF
	}
	if cvOutput != "" {
		cfg.CV.Output = cvOutput
	}

	meta, source, err := readCV(cfg.CV.Source, cfg.CV.PDFPath)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	if meta.Name == "" && meta.Email == "" {
		slog.Warn("no contact details found in CV", "source", source)
	}

	sync := cv.NewSync(meta, cfg.CV.PublicPath, source)
	if err := cv.WriteSync(cfg.CV.Output, sync); err != nil {
		exitWithError(ExitWriteFailure, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Wrote %s from %s\n", cfg.CV.Output, source)
		fmt.Printf("  name:          %s\n", meta.Name)
		fmt.Printf("  email:         %s\n", meta.Email)
		if meta.Website != "" {
			fmt.Printf("  website:       %s\n", meta.Website)
		}
		fmt.Printf("  publications:  %d\n", len(meta.Publications))
	} else {
		outputJSON(CVResult{
			Status: "written",
			Source: source,
			Output: cfg.CV.Output,
			Sync:   sync,
			Meta:   meta,
		})
	}
	return nil
}

// readCV parses the Typst source when present, else the compiled PDF.
func readCV(source, pdfPath string) (cv.Metadata, string, error) {
	if source != "" {
		if _, err := os.Stat(source); err == nil {
			meta, err := cv.ParseFile(source)
			return meta, source, err
		}
	}
	if pdfPath == "" {
		return cv.Metadata{}, "", fmt.Errorf("CV source %s not found and no pdf_path configured", source)
	}
	meta, err := cv.ParsePDF(pdfPath)
	return meta, pdfPath, err
}
