package cmd

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/emotune-cli/internal/apperr"
	"github.com/idlab-discover/emotune-cli/internal/device"
	"github.com/idlab-discover/emotune-cli/internal/inference"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict [sentence...]",
	Short: "Classify sentences with a trained checkpoint",
	Long:  "Classify sentences given as arguments, with --text, or one per line on stdin. Inputs are placed on --device; a device different from the checkpoint's fails instead of being moved.",
	RunE:  runPredict,
}

func runPredict(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	dev, err := device.Parse(viper.GetString("predict.device"))
	if err != nil {
		return apperr.User(err.Error())
	}

	// Read --text from the flag itself: viper splits array values on commas.
	texts, err := cmd.Flags().GetStringArray("text")
	if err != nil {
		return err
	}
	sentences := append(append([]string{}, args...), texts...)
	if len(sentences) == 0 {
		if sentences, err = readLines(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	if len(sentences) == 0 {
		return apperr.User("no sentences to classify (pass arguments, --text, or stdin)")
	}

	dir, err := resolveCheckpoint(viper.GetString("predict.checkpoint"), outputDirOrDefault("predict.output-dir"), viper.GetBool("predict.interactive"))
	if err != nil {
		return err
	}
	m, tok, err := loadCheckpoint(dir)
	if err != nil {
		return err
	}

	r := inference.NewRunner(tok, m, dev)
	preds, err := r.Predict(cmd.Context(), sentences)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if viper.GetBool("predict.json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(preds)
	}
	rows := make([]ui.PredictionRow, len(preds))
	for i, p := range preds {
		rows[i] = ui.PredictionRow{Text: p.Text, Label: p.Name, Score: p.Score}
	}
	ui.NewReportUI(out, s.quiet).PrintPredictions(rows)
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func init() {
	f := predictCmd.Flags()
	f.StringArrayP("text", "t", nil, "Sentence to classify (repeatable)")
	f.StringP("checkpoint", "c", "", "Checkpoint directory (default the final model in --output-dir)")
	f.StringP("output-dir", "o", "", "Training output directory (default results)")
	f.BoolP("interactive", "i", false, "Pick a checkpoint under --output-dir interactively")
	f.String("device", "", "Device for the inputs (default cpu)")
	f.Bool("json", false, "Print predictions as JSON with per-label scores")

	for _, name := range []string{"checkpoint", "output-dir", "interactive", "device", "json"} {
		viper.BindPFlag("predict."+name, f.Lookup(name))
	}
}
