package cmd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rowsync-core/internal/api"
	coreerrors "rowsync-core/internal/core/errors"
)

const snapshotTimeout = 10 * time.Second

var (
	snapshotTopic  string
	snapshotServer string
	snapshotJSON   bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the projection of a topic from a running daemon",
	Long: `Fetch the current projection of a topic from a running syncd api.
The topic must be mounted on the daemon, either pinned with "serve --topic"
or held open by a watch stream.

Example:
  syncd snapshot --topic posts
  syncd snapshot --topic posts --server http://10.0.0.5:8080 --json`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotTopic, "topic", "t", "", "Topic to fetch (required)")
	snapshotCmd.Flags().StringVarP(&snapshotServer, "server", "s", "", "API base URL, defaults to api.listen")
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Print the raw JSON response")
	_ = snapshotCmd.MarkFlagRequired("topic")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	server := snapshotServer
	if server == "" {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		server = baseURL(cfg.API.Listen)
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snap, err := fetchSnapshot(ctx, http.DefaultClient, server, snapshotTopic)
	if err != nil {
		return err
	}

	if snapshotJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	newOutput(os.Stdout).Snapshot(snap.Topic, snap.Items, snap.Version)
	return nil
}

// baseURL 将监听地址转换为本地可访问的 URL
func baseURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func fetchSnapshot(ctx context.Context, client *http.Client, server, topic string) (*api.SnapshotResponse, error) {
	endpoint := strings.TrimRight(server, "/") + "/topics/" + url.PathEscape(topic) + "/snapshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "invalid server url")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, coreerrors.Wrapf(err, coreerrors.CodeTransportError, "request %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body api.ResponseData
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			return nil, coreerrors.Newf(coreerrors.CodeTransportError, "%s: %s", resp.Status, body.Error)
		}
		return nil, coreerrors.Newf(coreerrors.CodeTransportError, "unexpected status %s", resp.Status)
	}

	var snap api.SnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeMalformedRecord, "decode snapshot")
	}
	return &snap, nil
}
