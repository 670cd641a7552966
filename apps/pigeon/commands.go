package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/CenterForOpenScience/pigeon-services/constants"
	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/CenterForOpenScience/pigeon-services/services"
	"github.com/CenterForOpenScience/pigeon-services/util"
	"github.com/spf13/cobra"
)

// pigeon runs jobs in the foreground, without NSQ. Operators use it to
// archive one registration by hand or to check on a job.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pigeon",
		Short:        "Archive OSF registrations to the Internet Archive",
		Long:         "pigeon archives OSF registrations to the Internet Archive and keeps their metadata in sync.\n\n" + envHelp,
		SilenceUsage: true,
	}
	root.AddCommand(newArchiveCmd())
	root.AddCommand(newSyncMetadataCmd())
	root.AddCommand(newStatusCmd())
	return root
}

const envHelp = `Settings come from $PIGEON_CONFIG_DIR/.env.$PIGEON_ENV.`

func checkGUID(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if !util.LooksLikeGUID(args[0]) {
		return fmt.Errorf("%q is not a guid", args[0])
	}
	return nil
}

func newArchiveCmd() *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "archive <guid>",
		Short: "Bag a registration and upload it to the archive",
		Args:  checkGUID,
		RunE: func(cmd *cobra.Command, args []string) error {
			_context := services.NewContext(common.NewConfig())
			item, guid, err := _context.Archiver().Archive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %s at %s\n", guid, item.DetailsURL)
			if notify {
				if err = _context.RegistryClient.NotifyArchived(cmd.Context(), guid, item.DetailsURL); err != nil {
					return fmt.Errorf("could not notify the OSF: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Notified the OSF")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "tell the OSF where the item was archived")
	return cmd
}

func newSyncMetadataCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sync-metadata <guid>",
		Short: "Push a JSON metadata patch to an archived registration",
		Long:  "Push a JSON metadata patch to an archived registration. The patch is read from --file, or from stdin if --file is not set.",
		Args:  checkGUID,
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := readPatch(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			_context := services.NewContext(common.NewConfig())
			item, keys, err := _context.Archiver().SyncMetadata(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s on %s\n", strings.Join(keys, ", "), item.Identifier)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a JSON file holding the patch")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <guid>",
		Short: "Show the last archive and metadata job results for a registration",
		Args:  checkGUID,
		RunE: func(cmd *cobra.Command, args []string) error {
			_context := services.NewContext(common.NewConfig())
			results, err := _context.RedisClient.JobResultsForGUID(args[0])
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("no jobs recorded for %s", args[0])
			}
			return printResults(cmd.OutOrStdout(), results)
		},
	}
}

func readPatch(stdin io.Reader, file string) (service.MetadataRecord, error) {
	var data []byte
	var err error
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return nil, err
	}
	patch := service.MetadataRecord{}
	if err = json.Unmarshal(data, &patch); err != nil {
		return nil, fmt.Errorf("metadata patch is not a JSON object: %w", err)
	}
	return patch, nil
}

func printResults(w io.Writer, results map[string]*service.JobResult) error {
	for _, operation := range []string{constants.OpArchive, constants.OpSyncMetadata} {
		result, ok := results[operation]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s: %s (attempt %d)\n", operation, result.Status(), result.Attempt)
		if result.ArchiveURL != "" {
			fmt.Fprintf(w, "  %s\n", result.ArchiveURL)
		}
		for _, err := range result.Errors {
			fmt.Fprintf(w, "  error: %s\n", err.Message)
		}
	}
	return nil
}
