package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/marcelsud/webhook-dispatcher/config"
	"github.com/marcelsud/webhook-dispatcher/dispatch"
	"github.com/marcelsud/webhook-dispatcher/queue"
	queueredis "github.com/marcelsud/webhook-dispatcher/queue/redis"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

/* enqueue - push one event for one hook onto the webhook lane
 * Usage: enqueue --hook hook-1 --kind push --data '{"ref":"main"}'
 *        echo '{"ref":"main"}' | enqueue --hook hook-1 --kind push
 */

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var hookID, eventKind, data string

	cmd := &cobra.Command{
		Use:          "enqueue",
		Short:        "Enqueue an event for background delivery to a hook",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readPayload(data, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := config.GetConfig()
			if err != nil {
				return err
			}

			q, err := queueredis.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				return err
			}
			defer q.Close()

			router := queue.NewRouter()
			if err := router.Assign(queue.ClassWebhook, cfg.WebhookLane); err != nil {
				return err
			}

			// Producers never deliver, so no finder or deliverer is needed
			d := dispatch.NewDispatcher(nil, nil, q, router, zerolog.Nop())
			jobID, err := d.Enqueue(cmd.Context(), hookID, raw, eventKind)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), jobID)
			return nil
		},
	}

	cmd.Flags().StringVar(&hookID, "hook", "", "hook id (required)")
	cmd.Flags().StringVar(&eventKind, "kind", "", "event kind, e.g. push (required)")
	cmd.Flags().StringVar(&data, "data", "", "JSON object payload; read from stdin when empty")
	cmd.MarkFlagRequired("hook")
	cmd.MarkFlagRequired("kind")

	return cmd
}

func readPayload(data string, stdin io.Reader) (map[string]any, error) {
	body := []byte(data)
	if data == "" {
		var err error
		body, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return raw, nil
}
