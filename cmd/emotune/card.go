package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/emotune-cli/internal/apperr"
	"github.com/idlab-discover/emotune-cli/internal/dataset"
	"github.com/idlab-discover/emotune-cli/internal/modelcard"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

// cardCmd represents the card command
var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Render the model card of a checkpoint",
	Long:  "Render the README.md model card of a checkpoint to stdout or a file, without contacting the hub.",
	RunE:  runCard,
}

func runCard(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	dir, err := resolveCheckpoint(viper.GetString("card.checkpoint"), outputDirOrDefault("card.output-dir"), viper.GetBool("card.interactive"))
	if err != nil {
		return err
	}
	modelID := viper.GetString("card.model-id")
	if modelID == "" {
		modelID = filepath.Base(filepath.Clean(dir))
	}
	datasetID := viper.GetString("card.dataset")
	if datasetID == "" {
		datasetID = dataset.DefaultDatasetID
	}
	datasetConfig := viper.GetString("card.dataset-config")
	if datasetConfig == "" {
		datasetConfig = dataset.DefaultConfig
	}

	d, err := cardData(dir, modelID, datasetID, datasetConfig)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.Userf("%s is not a checkpoint", dir)
		}
		return err
	}
	text, err := modelcard.Render(d)
	if err != nil {
		return err
	}

	dst := viper.GetString("card.out")
	if dst == "" || dst == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(dst, []byte(text), 0o644); err != nil {
		return err
	}
	if !s.quiet {
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatStatus("success", "Model card written to "+ui.Highlight.Render(dst)))
	}
	return nil
}

func init() {
	f := cardCmd.Flags()
	f.StringP("checkpoint", "c", "", "Checkpoint directory (default the final model in --output-dir)")
	f.StringP("output-dir", "o", "", "Training output directory (default results)")
	f.BoolP("interactive", "i", false, "Pick a checkpoint under --output-dir interactively")
	f.String("model-id", "", "Model id shown in the card (default the checkpoint directory name)")
	f.String("dataset", "", "Dataset id named in the card (default emotion)")
	f.String("dataset-config", "", "Dataset config named in the card (default split)")
	f.String("out", "", "Write the card to this file instead of stdout")

	for _, name := range []string{"checkpoint", "output-dir", "interactive", "model-id", "dataset", "dataset-config", "out"} {
		viper.BindPFlag("card."+name, f.Lookup(name))
	}
}
