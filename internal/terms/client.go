// Package terms resolves ontology terms for biological targets: GO and
// ChEBI term ids per UniProt accession, and human-readable names per
// term id. Lookups hit the UniProt REST API and the EBI OLS4 API, are
// dispatched to a bounded worker pool, cached in-process for the run,
// and persisted to a gzip JSON artifact so later runs skip the network.
package terms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ClientConfig tunes the enrichment HTTP client.
type ClientConfig struct {
	UniProtBaseURL string
	OLSBaseURL     string
	Timeout        time.Duration
	MaxRetries     int
}

// Client fetches target terms and term names from the external
// ontology services. Every request carries a timeout and a bounded
// retry count with exponential backoff; exhausting retries is fatal
// for the enrichment phase.
type Client struct {
	httpClient  *http.Client
	uniprotBase string
	olsBase     string
	maxRetries  int
	log         *zap.Logger
}

// NewClient creates an enrichment client.
func NewClient(cfg ClientConfig, log *zap.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		uniprotBase: strings.TrimSuffix(cfg.UniProtBaseURL, "/"),
		olsBase:     strings.TrimSuffix(cfg.OLSBaseURL, "/"),
		maxRetries:  cfg.MaxRetries,
		log:         log,
	}
}

// CategoryTerms holds the term ids of one target, grouped into the
// four ontology categories the merger appends in fixed order.
type CategoryTerms struct {
	Function  []string `json:"Function"`
	Process   []string `json:"Process"`
	Component []string `json:"Component"`
	ChEBI     []string `json:"ChEBI"`
}

// uniprotEntry is the subset of the UniProtKB entry document the
// enrichment step reads. An entry that does not match this shape in
// the places we read is a fatal error, never a partial term set.
type uniprotEntry struct {
	Comments []struct {
		CommentType string `json:"commentType"`
		Reaction    struct {
			ReactionCrossReferences []crossRef `json:"reactionCrossReferences"`
		} `json:"reaction"`
		Cofactors []struct {
			CofactorCrossReference crossRef `json:"cofactorCrossReference"`
		} `json:"cofactors"`
	} `json:"comments"`
	CrossReferences []struct {
		Database   string `json:"database"`
		ID         string `json:"id"`
		Properties []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"properties"`
	} `json:"uniProtKBCrossReferences"`
}

type crossRef struct {
	Database string `json:"database"`
	ID       string `json:"id"`
}

// FetchTargetTerms retrieves the GO and ChEBI terms of one accession.
// It returns the categorized term ids, the GO term names carried in
// the same response, and the distinct ChEBI ids that still need a name
// lookup via FetchChEBIName.
func (c *Client) FetchTargetTerms(ctx context.Context, accession string) (CategoryTerms, map[string]string, []string, error) {
	var entry uniprotEntry
	url := fmt.Sprintf("%s/%s.json", c.uniprotBase, accession)
	if err := c.getJSON(ctx, url, &entry); err != nil {
		return CategoryTerms{}, nil, nil, fmt.Errorf("target %s: %w", accession, err)
	}

	ct := CategoryTerms{
		Function:  []string{},
		Process:   []string{},
		Component: []string{},
		ChEBI:     []string{},
	}
	names := make(map[string]string)
	seenChEBI := make(map[string]bool)
	var chebiIDs []string

	addChEBI := func(id string) {
		ct.ChEBI = append(ct.ChEBI, id)
		if !seenChEBI[id] {
			seenChEBI[id] = true
			chebiIDs = append(chebiIDs, id)
		}
	}

	for _, cm := range entry.Comments {
		switch cm.CommentType {
		case "CATALYTIC ACTIVITY":
			for _, ref := range cm.Reaction.ReactionCrossReferences {
				if ref.Database == "ChEBI" {
					addChEBI(ref.ID)
				}
			}
		case "COFACTOR":
			for _, cof := range cm.Cofactors {
				if cof.CofactorCrossReference.Database == "ChEBI" {
					addChEBI(cof.CofactorCrossReference.ID)
				}
			}
		}
	}

	for _, ref := range entry.CrossReferences {
		if ref.Database != "GO" {
			continue
		}
		if len(ref.Properties) == 0 || ref.Properties[0].Key != "GoTerm" {
			return CategoryTerms{}, nil, nil, fmt.Errorf("target %s: unexpected format in uniProtKBCrossReferences", accession)
		}
		letter, name, ok := strings.Cut(ref.Properties[0].Value, ":")
		if !ok {
			return CategoryTerms{}, nil, nil, fmt.Errorf("target %s: malformed GO term value %q", accession, ref.Properties[0].Value)
		}
		switch letter {
		case "F":
			ct.Function = append(ct.Function, ref.ID)
		case "P":
			ct.Process = append(ct.Process, ref.ID)
		case "C":
			ct.Component = append(ct.Component, ref.ID)
		default:
			return CategoryTerms{}, nil, nil, fmt.Errorf("target %s: unknown GO category %q", accession, letter)
		}
		names[ref.ID] = strings.Join(strings.Fields(name), " ")
	}
	return ct, names, chebiIDs, nil
}

// FetchChEBIName resolves the label of one ChEBI id (e.g. CHEBI:53438)
// via the EBI OLS4 API.
func (c *Client) FetchChEBIName(ctx context.Context, chebiID string) (string, error) {
	_, num, ok := strings.Cut(chebiID, ":")
	if !ok {
		return "", fmt.Errorf("malformed ChEBI id %q", chebiID)
	}
	// OLS4 takes the double URL-encoded OBO IRI as the term path.
	iri := "http%253A%252F%252Fpurl.obolibrary.org%252Fobo%252FCHEBI_" + num
	url := fmt.Sprintf("%s/chebi/terms/%s", c.olsBase, iri)
	var res struct {
		Label string `json:"label"`
	}
	if err := c.getJSON(ctx, url, &res); err != nil {
		return "", fmt.Errorf("chebi %s: %w", chebiID, err)
	}
	if res.Label == "" {
		return "", fmt.Errorf("chebi %s: empty label in response", chebiID)
	}
	return res.Label, nil
}

// getJSON performs a GET with bounded retries and exponential backoff.
// Server-side (5xx) and rate-limit (429) responses and transport
// errors are retried; any other non-200 status and any decode failure
// are fatal immediately.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// 1s, 2s, 4s, ...
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			c.log.Debug("retrying lookup", zap.String("url", url), zap.Int("attempt", attempt), zap.Duration("backoff", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("unexpected response shape from %s: %w", url, err)
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d from %s", resp.StatusCode, url)
			continue
		default:
			resp.Body.Close()
			return fmt.Errorf("status %d from %s", resp.StatusCode, url)
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}
