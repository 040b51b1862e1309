package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/BaSui01/crewstudio/llm/providers"
)

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// listOllama 查询本地守护进程的 /api/tags。
// 不可达、非 200 或空列表都视为 unavailable，不做猜测。
func (c *Catalog) listOllama(ctx context.Context) ListResult {
	unavailable := func(status ListStatus, reason string, err error) ListResult {
		return ListResult{Provider: KindOllama, Status: status, Reason: reason, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.ollamaTimeout)
	defer cancel()

	endpoint := strings.TrimRight(c.ollamaBaseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return unavailable(StatusUnavailable, "invalid endpoint", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return unavailable(StatusTimeout, "ollama did not answer in time", err)
		}
		return unavailable(StatusUnavailable, "could not connect to ollama", err)
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return unavailable(StatusUnavailable, "could not connect to ollama",
			fmt.Errorf("ollama tags: status %d", resp.StatusCode))
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return unavailable(StatusUnavailable, "malformed tags response", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	if len(names) == 0 {
		return unavailable(StatusUnavailable, "no ollama models installed; run 'ollama pull <model>'", nil)
	}
	return ListResult{Provider: KindOllama, Status: StatusLive, Models: names}
}
