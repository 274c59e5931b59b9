// Package accidentapi talks to the accident CRUD backend: report submission
// and filtered accident queries.
package accidentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"accidentbot/internal/domain"
)

const maxLoggedBody = 500

// APIError carries a user-presentable Detail. StatusCode is 0 for
// transport failures.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return e.Detail
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

func (c *Client) accidentsURL() string {
	return c.baseURL + "/accidentes/"
}

// SubmitReport posts one report. The returned error is always an *APIError.
func (c *Client) SubmitReport(ctx context.Context, s domain.ReportSubmission) (domain.SubmissionResult, error) {
	if err := domain.ValidateSubmission(s); err != nil {
		log.Printf("accidentapi submit rejected locally: %v", err)
		return domain.SubmissionResult{}, &APIError{Detail: "The report data is incomplete or invalid and was not sent."}
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return domain.SubmissionResult{}, &APIError{Detail: fmt.Sprintf("Could not encode the report: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accidentsURL(), bytes.NewReader(payload))
	if err != nil {
		return domain.SubmissionResult{}, &APIError{Detail: fmt.Sprintf("Could not build the submission request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	status, body, err := c.do(req)
	if err != nil {
		if isTimeout(err) {
			log.Printf("accidentapi submit timeout url=%s: %v", req.URL, err)
			return domain.SubmissionResult{}, &APIError{Detail: "The server took too long to respond (timeout). Please try again later."}
		}
		log.Printf("accidentapi submit transport error url=%s: %v", req.URL, err)
		return domain.SubmissionResult{}, &APIError{Detail: fmt.Sprintf("Could not connect to the server to submit the report. Check your connection or contact support. (%s)", errorKind(err))}
	}
	if status < 200 || status >= 300 {
		detail := FormatErrorDetail(status, body)
		log.Printf("accidentapi submit status=%d detail=%q body=%q", status, detail, truncate(body))
		return domain.SubmissionResult{}, &APIError{StatusCode: status, Detail: detail}
	}

	var created map[string]any
	if err := json.Unmarshal(body, &created); err != nil {
		log.Printf("accidentapi submit status=%d unparseable body=%q", status, truncate(body))
		return domain.SubmissionResult{}, &APIError{StatusCode: status, Detail: "The server accepted the request but returned an unreadable response."}
	}
	id := accidentID(created)
	if id == "" {
		log.Printf("accidentapi submit status=%d missing id body=%q", status, truncate(body))
		return domain.SubmissionResult{}, &APIError{StatusCode: status, Detail: "The server response did not include an accident id."}
	}
	log.Printf("accidentapi submit ok status=%d accident_id=%s", status, id)
	return domain.SubmissionResult{AccidentID: id}, nil
}

// QueryAccidents lists accidents matching f. An empty result is a nil error
// with zero records; a failed call is an *APIError.
func (c *Client) QueryAccidents(ctx context.Context, f domain.AccidentFilter) ([]json.RawMessage, error) {
	u := c.accidentsURL()
	if params := f.Params().Encode(); params != "" {
		u += "?" + params
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Detail: fmt.Sprintf("Could not build the query request: %v", err)}
	}
	c.authorize(req)

	status, body, err := c.do(req)
	if err != nil {
		if isTimeout(err) {
			log.Printf("accidentapi query timeout url=%s: %v", u, err)
			return nil, &APIError{Detail: "The server took too long to respond (timeout) while querying accidents."}
		}
		log.Printf("accidentapi query transport error url=%s: %v", u, err)
		return nil, &APIError{Detail: fmt.Sprintf("Could not connect to the server to query accidents. (%s)", errorKind(err))}
	}
	if status < 200 || status >= 300 {
		detail := FormatErrorDetail(status, body)
		log.Printf("accidentapi query status=%d detail=%q", status, detail)
		return nil, &APIError{StatusCode: status, Detail: detail}
	}

	records, err := decodeRecords(body)
	if err != nil {
		log.Printf("accidentapi query status=%d unexpected body=%q", status, truncate(body))
		return nil, &APIError{StatusCode: status, Detail: err.Error()}
	}
	log.Printf("accidentapi query ok params=%q records=%d", f.Params().Encode(), len(records))
	return records, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// decodeRecords accepts a bare list or a paginated object with an items list.
func decodeRecords(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err == nil {
		return list, nil
	}
	var page struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &page); err == nil && page.Items != nil {
		return page.Items, nil
	}
	return nil, errors.New("The server returned an unexpected response format for the accident query.")
}

// FormatErrorDetail renders a FastAPI-style error body. detail may be a
// string or a list of {loc, msg} validation errors.
func FormatErrorDetail(status int, body []byte) string {
	fallback := fmt.Sprintf("Server error (HTTP %d).", status)
	text := strings.TrimSpace(string(body))

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		if text != "" {
			return text
		}
		return fmt.Sprintf("HTTP error %d without a JSON response body.", status)
	}
	raw, ok := payload["detail"]
	if !ok {
		if text != "" {
			return text
		}
		return fallback
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			loc := "unknown_field"
			if len(item.Loc) > 0 {
				parts := make([]string, 0, len(item.Loc))
				for _, p := range item.Loc {
					parts = append(parts, locPart(p))
				}
				loc = strings.Join(parts, " -> ")
			}
			msg := item.Msg
			if msg == "" {
				msg = "Unspecified validation error."
			}
			msgs = append(msgs, fmt.Sprintf("Field '%s': %s", loc, msg))
		}
		if len(msgs) == 0 {
			return "Detailed validation errors are not available."
		}
		return strings.Join(msgs, "; ")
	}
	return string(raw)
}

func locPart(p any) string {
	switch v := p.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func accidentID(created map[string]any) string {
	for _, key := range []string{"id", "id_accidente"} {
		switch v := created[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func errorKind(err error) string {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection error: " + opErr.Op
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return "request error"
}

func truncate(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody])
	}
	return string(body)
}
