package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meterease/internal/logger"
	"meterease/internal/service/ai"
	"meterease/internal/service/reading"
	"meterease/internal/service/vision"
)

var readAnnotated string

var readCmd = &cobra.Command{
	Use:   "read IMAGE",
	Short: "Read a meter photo with the detection model",
	Long: `Sends IMAGE to the configured detection model and prints the assembled reading.
Nothing is stored. Use --annotated to write the preview with detection boxes.`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVar(&readAnnotated, "annotated", "", "write the annotated preview JPEG to this path")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	mat, err := vision.Decode(data)
	if err != nil {
		return err
	}
	defer mat.Close()

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	predictions, err := ai.NewHostedDetector(cfg, log).Detect(cmd.Context(), data)
	if err != nil {
		return err
	}
	assembly := reading.Assemble(predictions)

	out := cmd.OutOrStdout()
	if assembly.Empty() {
		fmt.Fprintln(out, "No digits detected")
	} else {
		fmt.Fprintf(out, "Reading: %s\n", assembly.Value)
		for _, d := range assembly.Detections {
			fmt.Fprintf(out, "  %s  %.0f%%  (%.0f,%.0f)-(%.0f,%.0f)\n",
				d.Label, d.Confidence*100, d.Left, d.Top, d.Right, d.Bottom)
		}
	}

	if readAnnotated == "" {
		return nil
	}

	preview, err := vision.NewAnnotator().Annotate(mat, assembly.Detections)
	if err != nil {
		return err
	}
	defer preview.Close()

	encoded, err := vision.EncodeJPEG(preview)
	if err != nil {
		return err
	}
	if err := os.WriteFile(readAnnotated, encoded, 0644); err != nil {
		return fmt.Errorf("writing preview: %w", err)
	}
	fmt.Fprintf(out, "Preview written to %s\n", readAnnotated)
	return nil
}
