package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// statementResponse is the subset of the Trino statement-protocol envelope
// the probe needs: the data rows of this stage, an optional nextUri to
// keep polling, an optional error, and the stats block used to detect the
// terminal FINISHED state.
type statementResponse struct {
	Columns []json.RawMessage `json:"columns"`
	Data    []json.RawMessage `json:"data"`
	NextURI string            `json:"nextUri"`
	Error   *statementError   `json:"error"`
	Stats   struct {
		State string `json:"state"`
	} `json:"stats"`
}

type statementError struct {
	Message string `json:"message"`
}

// execResult is the accumulated result of following a statement's nextUri
// chain to completion.
type execResult struct {
	data    []json.RawMessage
	errMsg  string
	hasErr  bool
}

// doRequest executes a single HTTP round trip with a fixed per-call
// timeout (an earlier deadline already on ctx still applies). Each hop in
// the nextUri chain gets its own budget rather than sharing one deadline.
func doRequest(ctx context.Context, client *http.Client, req *http.Request, perCallTimeout time.Duration) (*http.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
	req = req.WithContext(callCtx)
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	// cancel is intentionally not deferred here: the caller reads the body
	// before the timeout should fire, then closes resp.Body itself.
	go func() {
		<-callCtx.Done()
		cancel()
	}()
	return resp, nil
}

// execute submits sql as a new statement to baseURL and follows its
// nextUri chain to a terminal state, accumulating every data page along
// the way. It never returns a client-visible error for statement-execution
// problems — those come back as execResult.hasErr so the caller can apply
// the view-error classification.
func execute(ctx context.Context, client *http.Client, baseURL, user, sql string, perCallTimeout time.Duration) (*execResult, error) {
	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/statement", bytes.NewBufferString(sql))
	if err != nil {
		return nil, fmt.Errorf("probe: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Trino-User", user)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := doRequest(ctx, client, req, perCallTimeout)
	if err != nil {
		return nil, err
	}
	stage, err := readStatementResponse(resp)
	if err != nil {
		return nil, err
	}

	result := &execResult{}
	if stage.Error != nil {
		result.hasErr = true
		result.errMsg = stage.Error.Message
		return result, nil
	}
	result.data = append(result.data, stage.Data...)

	nextURI := stage.NextURI
	for nextURI != "" {
		nreq, err := http.NewRequest(http.MethodGet, nextURI, nil)
		if err != nil {
			return nil, fmt.Errorf("probe: build nextUri request: %w", err)
		}
		nreq.Header.Set("X-Trino-User", user)

		nresp, err := doRequest(ctx, client, nreq, perCallTimeout)
		if err != nil {
			return nil, err
		}
		nstage, err := readStatementResponse(nresp)
		if err != nil {
			return nil, err
		}
		if nstage.Error != nil {
			result.hasErr = true
			result.errMsg = nstage.Error.Message
			return result, nil
		}
		result.data = append(result.data, nstage.Data...)
		if nstage.Stats.State == "FINISHED" {
			break
		}
		nextURI = nstage.NextURI
	}

	return result, nil
}

func readStatementResponse(resp *http.Response) (*statementResponse, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("probe: read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("probe: backend returned HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	var stage statementResponse
	if err := json.Unmarshal(body, &stage); err != nil {
		return nil, fmt.Errorf("probe: decode response: %w", err)
	}
	return &stage, nil
}

// firstCellString returns the first column of the first data row as a
// string — where an EXPLAIN statement's single output column lives.
func firstCellString(data []json.RawMessage) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	var row []json.RawMessage
	if err := json.Unmarshal(data[0], &row); err != nil || len(row) == 0 {
		return "", false
	}
	var cell string
	if err := json.Unmarshal(row[0], &cell); err != nil {
		return "", false
	}
	return cell, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
