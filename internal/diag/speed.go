package diag

import (
	"context"
	"fmt"

	"github.com/showwin/speedtest-go/speedtest"
)

// SpeedResult reports measured throughput and latency.
type SpeedResult struct {
	Download string `json:"download"`
	Upload   string `json:"upload"`
	Ping     string `json:"ping"`
}

// SpeedTest measures download, upload, and ping against the nearest speedtest
// server. This is slow; callers should budget a generous context timeout.
func SpeedTest(ctx context.Context) (SpeedResult, error) {
	client := speedtest.New()

	servers, err := client.FetchServerListContext(ctx)
	if err != nil {
		return SpeedResult{}, fmt.Errorf("fetch server list: %w", err)
	}
	targets, err := servers.FindServer(nil)
	if err != nil || len(targets) == 0 {
		return SpeedResult{}, fmt.Errorf("find test server: %w", err)
	}

	srv := targets[0]
	if err := srv.PingTestContext(ctx, nil); err != nil {
		return SpeedResult{}, fmt.Errorf("ping test: %w", err)
	}
	if err := srv.DownloadTestContext(ctx); err != nil {
		return SpeedResult{}, fmt.Errorf("download test: %w", err)
	}
	if err := srv.UploadTestContext(ctx); err != nil {
		return SpeedResult{}, fmt.Errorf("upload test: %w", err)
	}

	return SpeedResult{
		Download: fmt.Sprintf("%.2f Mbps", srv.DLSpeed.Mbps()),
		Upload:   fmt.Sprintf("%.2f Mbps", srv.ULSpeed.Mbps()),
		Ping:     fmt.Sprintf("%.2f ms", float64(srv.Latency.Microseconds())/1000),
	}, nil
}
