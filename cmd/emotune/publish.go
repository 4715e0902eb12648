package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/emotune-cli/internal/apperr"
	"github.com/idlab-discover/emotune-cli/internal/dataset"
	"github.com/idlab-discover/emotune-cli/internal/hub"
	"github.com/idlab-discover/emotune-cli/internal/publisher"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a checkpoint with its model card and AIBOM to the Hugging Face Hub",
	Long:  "Serialize a checkpoint into a local workspace named after the repository, render the model card and AIBOM next to it, and upload every file that differs from the hub. Publishing an unchanged model is a no-op.",
	RunE:  runPublish,
}

var stageNames = map[publisher.Stage]string{
	publisher.StagePreflight: "Checking workspace",
	publisher.StageSerialize: "Serializing model",
	publisher.StageCard:      "Writing model card",
	publisher.StageAIBOM:     "Writing AIBOM",
	publisher.StageAuth:      "Authenticating",
	publisher.StageRepo:      "Creating repository",
	publisher.StageDiff:      "Comparing with hub",
	publisher.StageUpload:    "Uploading",
}

func runPublish(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if s.mode == modeDummy {
		return apperr.User("publish talks to the hub; run it with --hf-mode online")
	}
	repoID := strings.Trim(strings.TrimSpace(viper.GetString("publish.repo-id")), "/")
	if repoID == "" {
		return apperr.User("--repo-id is required")
	}
	if strings.Count(repoID, "/") > 1 {
		return apperr.Userf("invalid --repo-id %q (expected name or namespace/name)", repoID)
	}
	dir, err := resolveCheckpoint(viper.GetString("publish.checkpoint"), outputDirOrDefault("publish.output-dir"), viper.GetBool("publish.interactive"))
	if err != nil {
		return err
	}
	workDir := viper.GetString("publish.work-dir")
	if workDir == "" {
		workDir = "."
	}

	// Fail on an unusable workspace before asking anything.
	ws := publisher.NewWorkspace(workDir, repoID)
	if err := ws.Check(); err != nil {
		return err
	}
	if strings.TrimSpace(viper.GetString("hub-token")) == "" {
		return hub.ErrNoToken
	}

	datasetID := viper.GetString("publish.dataset")
	if datasetID == "" {
		datasetID = dataset.DefaultDatasetID
	}
	datasetConfig := viper.GetString("publish.dataset-config")
	if datasetConfig == "" {
		datasetConfig = dataset.DefaultConfig
	}
	card, err := cardData(dir, repoID, datasetID, datasetConfig)
	if err != nil {
		return err
	}

	if !viper.GetBool("publish.yes") {
		visibility := "public"
		if viper.GetBool("publish.private") {
			visibility = "private"
		}
		if err := ui.Confirm(
			fmt.Sprintf("Publish %s to %s?", dir, repoID),
			fmt.Sprintf("Files are staged in %s and uploaded to a %s repository.", ws.Dir, visibility),
		); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	wf := newWorkflow(s, out)
	stages := make(map[publisher.Stage]stage, len(publisher.Stages))
	for _, st := range publisher.Stages {
		stages[st] = addStage(wf, stageNames[st])
	}
	startWorkflow(wf)
	defer stopWorkflow(wf)

	p := publisher.New(newHubClient())
	res, err := p.Publish(cmd.Context(), publisher.Options{
		RepoID:        repoID,
		CheckpointDir: dir,
		WorkDir:       workDir,
		Revision:      viper.GetString("publish.revision"),
		Private:       viper.GetBool("publish.private"),
		CommitMessage: viper.GetString("publish.message"),
		Card:          card,
		OnStage: func(st publisher.Stage, done bool, detail string, err error) {
			sg := stages[st]
			if !done {
				sg.start(detail)
				return
			}
			sg.finish(detail, err)
		},
	})
	if err != nil {
		return err
	}
	stopWorkflow(wf)

	summary := ui.PublishSummary{
		RepoID:    res.RepoID,
		URL:       res.URL,
		Workspace: res.Workspace,
		Created:   res.Created,
		NoOp:      res.NoOp,
		Changed:   res.Changed,
	}
	if res.Commit != nil {
		summary.Commit = res.Commit.OID
	}
	if !s.quiet {
		fmt.Fprintln(out)
	}
	ui.NewReportUI(out, s.quiet).PrintPublish(summary)
	return nil
}

func init() {
	f := publishCmd.Flags()
	f.StringP("repo-id", "r", "", "Target repository: name or namespace/name")
	f.StringP("checkpoint", "c", "", "Checkpoint directory (default the final model in --output-dir)")
	f.StringP("output-dir", "o", "", "Training output directory (default results)")
	f.BoolP("interactive", "i", false, "Pick a checkpoint under --output-dir interactively")
	f.String("work-dir", "", "Parent directory of the local workspace (default .)")
	f.String("revision", "", "Branch to commit to (default main)")
	f.Bool("private", false, "Create the repository as private")
	f.StringP("message", "m", "", "Commit message")
	f.String("dataset", "", "Dataset id named in the model card (default emotion)")
	f.String("dataset-config", "", "Dataset config named in the model card (default split)")
	f.BoolP("yes", "y", false, "Skip the confirmation prompt")

	for _, name := range []string{"repo-id", "checkpoint", "output-dir", "interactive", "work-dir", "revision", "private", "message", "dataset", "dataset-config", "yes"} {
		viper.BindPFlag("publish."+name, f.Lookup(name))
	}
}
