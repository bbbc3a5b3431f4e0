package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/convqueue/config"
	"github.com/bnema/convqueue/internal/domain"
)

const tokenEnv = "CONVQUEUE_TOKEN"

type enqueueOptions struct {
	conversionType string
	server         string
	token          string
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var opts enqueueOptions

	cmd := &cobra.Command{
		Use:   "enqueue <assetId>",
		Short: "Queue a conversion for an asset",
		Long: `Queue a conversion for an asset.

When no daemon holds the data directory the item is written straight to the
store and picked up on the next start. Otherwise the request goes through the
daemon's HTTP API and needs the admin token (--token or ` + tokenEnv + `).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			assetID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || assetID <= 0 {
				return fmt.Errorf("invalid asset id %q", args[0])
			}
			conversionType := domain.ConversionType(opts.conversionType)
			if !conversionType.Valid() {
				return fmt.Errorf("unknown conversion type %q", opts.conversionType)
			}

			running, err := daemonRunning(cfg)
			if err != nil {
				return err
			}

			var item *domain.QueueItem
			if running {
				item, err = enqueueRemote(cmd.Context(), cfg, opts, assetID, conversionType)
			} else {
				item, err = enqueueLocal(cmd.Context(), cfg, assetID, conversionType)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Queued item %d (%s) for asset %d\n", item.ID, item.ConversionType, item.AssetID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.conversionType, "type", "t", string(domain.ConversionCreateOptimized), "Conversion type: create_optimized or rotate_video")
	cmd.Flags().StringVar(&opts.server, "server", "", "Daemon base URL (default: http://127.0.0.1:<http.port>)")
	cmd.Flags().StringVar(&opts.token, "token", "", "Admin token (default: $"+tokenEnv+")")
	return cmd
}

func enqueueLocal(ctx context.Context, cfg *config.Config, assetID int64, conversionType domain.ConversionType) (*domain.QueueItem, error) {
	var item *domain.QueueItem
	err := withExclusiveStore(cfg, func(st *stores) error {
		asset, err := st.assets.Get(ctx, assetID)
		if err != nil {
			return fmt.Errorf("asset %d: %w", assetID, err)
		}

		queue, err := offlineQueue(ctx, cfg, st)
		if err != nil {
			return err
		}
		defer queue.Close()

		if queue.IsWaitingInQueueOrProcessing(assetID, conversionType) {
			return fmt.Errorf("asset %d: %w", assetID, domain.ErrDuplicateItem)
		}
		if conversionType == domain.ConversionCreateOptimized && !queue.HasEncoderSetting(asset) {
			return fmt.Errorf("asset %d: %w", assetID, domain.ErrNoEncoderSettings)
		}

		item, err = queue.Add(ctx, asset, conversionType)
		return err
	})
	return item, err
}

func enqueueRemote(ctx context.Context, cfg *config.Config, opts enqueueOptions, assetID int64, conversionType domain.ConversionType) (*domain.QueueItem, error) {
	token := opts.token
	if token == "" {
		token = os.Getenv(tokenEnv)
	}
	if token == "" {
		return nil, fmt.Errorf("daemon is running: pass --token or set %s", tokenEnv)
	}
	server := opts.server
	if server == "" {
		server = "http://127.0.0.1:" + strconv.Itoa(cfg.HTTP.Port)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	return postItem(ctx, client, server, token, assetID, conversionType)
}

func postItem(ctx context.Context, client *http.Client, server, token string, assetID int64, conversionType domain.ConversionType) (*domain.QueueItem, error) {
	body, err := json.Marshal(map[string]any{
		"asset_id":        assetID,
		"conversion_type": conversionType,
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(server, "/") + "/api/queue/items"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("daemon: %s (%d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("daemon: unexpected status %d", resp.StatusCode)
	}

	var item domain.QueueItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if item.ID == 0 {
		return nil, errors.New("daemon returned an item without id")
	}
	return &item, nil
}
