// Package mealie is the typed client for the Mealie recipe service. It is
// the only part of mealgroom that talks to the network: it owns the
// authenticated connection pool, classifies failures into ErrorKinds, and
// retries transient ones with jittered exponential backoff.
//
// The client is safe for concurrent use. At most PoolSize requests are in
// flight at once; additional callers wait on a weighted semaphore backed by
// the same limit as the transport's per-host connection cap.
package mealie

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kitchenops/mealgroom/internal/log"
)

const (
	// perPage is the page size for list endpoints.
	perPage = 100

	// defaultBackoffBase is the initial retry delay.
	defaultBackoffBase = 250 * time.Millisecond

	// defaultBackoffCap is the maximum retry delay.
	defaultBackoffCap = 5 * time.Second
)

// Options configures a Client.
type Options struct {
	// BaseURL is the root of the Mealie instance, without trailing slash.
	BaseURL string

	// Token is the Bearer credential. It is sent on every request and
	// never logged.
	Token string

	// Timeout is the total per-request deadline. Default: 10s.
	Timeout time.Duration

	// MaxRetries is the transient retry budget per call. Zero disables
	// retries entirely; the CLI default comes from configuration.
	MaxRetries int

	// PoolSize caps simultaneous requests. Default: 10.
	PoolSize int

	// BackoffBase and BackoffCap tune the retry schedule. Tests shrink
	// them; production uses the defaults (250ms base, 5s cap).
	BackoffBase time.Duration
	BackoffCap  time.Duration

	Logger log.Logger
}

// Client is the typed Mealie API wrapper.
type Client struct {
	baseURL     string
	token       string
	http        *http.Client
	sem         *semaphore.Weighted
	timeout     time.Duration
	maxRetries  int
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      log.Logger
}

// New creates a Client. The underlying transport reuses connections and is
// capped at opts.PoolSize concurrent requests per host.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffCap == 0 {
		opts.BackoffCap = defaultBackoffCap
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxConnsPerHost:       opts.PoolSize,
		MaxIdleConns:          opts.PoolSize,
		MaxIdleConnsPerHost:   opts.PoolSize,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		token:       opts.Token,
		http:        &http.Client{Transport: transport},
		sem:         semaphore.NewWeighted(int64(opts.PoolSize)),
		timeout:     opts.Timeout,
		maxRetries:  opts.MaxRetries,
		backoffBase: opts.BackoffBase,
		backoffCap:  opts.BackoffCap,
		logger:      opts.Logger,
	}
}

// ListRecipes fetches all recipe summaries, paging transparently.
// The progress callback, if non-nil, receives (fetched, total) per page.
func (c *Client) ListRecipes(ctx context.Context, progress func(cur, total int)) ([]RecipeSummary, error) {
	return listPages[RecipeSummary](ctx, c, "/api/recipes", "list recipes", progress)
}

// GetRecipe fetches one recipe with its full ingredient array.
func (c *Client) GetRecipe(ctx context.Context, slug string) (*Recipe, error) {
	var recipe Recipe
	if err := c.do(ctx, http.MethodGet, "/api/recipes/"+url.PathEscape(slug), nil, nil, &recipe, "get recipe"); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// ListUnits fetches all catalog units.
func (c *Client) ListUnits(ctx context.Context, progress func(cur, total int)) ([]Unit, error) {
	return listPages[Unit](ctx, c, "/api/units", "list units", progress)
}

// ListFoods fetches all catalog foods.
func (c *Client) ListFoods(ctx context.Context, progress func(cur, total int)) ([]Food, error) {
	return listPages[Food](ctx, c, "/api/foods", "list foods", progress)
}

// CreateUnit creates a catalog unit. When abbreviation is blank it defaults
// to the first three runes of the name, matching server conventions.
func (c *Client) CreateUnit(ctx context.Context, name, abbreviation, description string) (*Unit, error) {
	if abbreviation == "" {
		runes := []rune(name)
		if len(runes) > 3 {
			runes = runes[:3]
		}
		abbreviation = string(runes)
	}
	body := Unit{
		Name:            name,
		Abbreviation:    abbreviation,
		Description:     description,
		Fraction:        true,
		UseAbbreviation: false,
	}
	var created Unit
	if err := c.do(ctx, http.MethodPost, "/api/units", nil, body, &created, "create unit"); err != nil {
		return nil, err
	}
	c.logger.Info("created unit", "name", name, "id", created.ID)
	return &created, nil
}

// CreateFood creates a catalog food.
func (c *Client) CreateFood(ctx context.Context, name, description string) (*Food, error) {
	body := Food{Name: name, Description: description}
	var created Food
	if err := c.do(ctx, http.MethodPost, "/api/foods", nil, body, &created, "create food"); err != nil {
		return nil, err
	}
	c.logger.Info("created food", "name", name, "id", created.ID)
	return &created, nil
}

// GetFood fetches one food by id.
func (c *Client) GetFood(ctx context.Context, id string) (*Food, error) {
	var food Food
	if err := c.do(ctx, http.MethodGet, "/api/foods/"+url.PathEscape(id), nil, nil, &food, "get food"); err != nil {
		return nil, err
	}
	return &food, nil
}

// GetUnit fetches one unit by id.
func (c *Client) GetUnit(ctx context.Context, id string) (*Unit, error) {
	var unit Unit
	if err := c.do(ctx, http.MethodGet, "/api/units/"+url.PathEscape(id), nil, nil, &unit, "get unit"); err != nil {
		return nil, err
	}
	return &unit, nil
}

// AddFoodAlias attaches alias to the food and returns the updated entity.
// The write is read-modify-write against PUT /api/foods/{id}; an alias that
// is already present (case-insensitive) is a success without a write.
func (c *Client) AddFoodAlias(ctx context.Context, foodID, alias string) (*Food, error) {
	food, err := c.GetFood(ctx, foodID)
	if err != nil {
		return nil, err
	}
	if hasAlias(food.Aliases, alias) {
		c.logger.Debug("alias already present", "food", food.Name, "alias", alias)
		return food, nil
	}
	food.Aliases = append(food.Aliases, Alias{Name: alias})

	var updated Food
	if err := c.do(ctx, http.MethodPut, "/api/foods/"+url.PathEscape(foodID), nil, food, &updated, "add food alias"); err != nil {
		return nil, err
	}
	c.logger.Info("added food alias", "food", updated.Name, "alias", alias)
	return &updated, nil
}

// AddUnitAlias attaches alias to the unit, with the same semantics as
// AddFoodAlias.
func (c *Client) AddUnitAlias(ctx context.Context, unitID, alias string) (*Unit, error) {
	unit, err := c.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if hasAlias(unit.Aliases, alias) {
		c.logger.Debug("alias already present", "unit", unit.Name, "alias", alias)
		return unit, nil
	}
	unit.Aliases = append(unit.Aliases, Alias{Name: alias})

	var updated Unit
	if err := c.do(ctx, http.MethodPut, "/api/units/"+url.PathEscape(unitID), nil, unit, &updated, "add unit alias"); err != nil {
		return nil, err
	}
	c.logger.Info("added unit alias", "unit", updated.Name, "alias", alias)
	return &updated, nil
}

// UpdateIngredient applies patch to a single ingredient via the
// per-ingredient endpoint: read the current object, set the references, PUT
// it back.
func (c *Client) UpdateIngredient(ctx context.Context, ingredientID string, patch IngredientPatch) error {
	path := "/api/recipes/ingredients/" + url.PathEscape(ingredientID)

	var ing map[string]any
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &ing, "get ingredient"); err != nil {
		return err
	}
	if patch.UnitID != "" {
		ing["unit"] = map[string]any{"id": patch.UnitID}
	}
	if patch.FoodID != "" {
		ing["food"] = map[string]any{"id": patch.FoodID}
	}
	return c.do(ctx, http.MethodPut, path, nil, ing, nil, "update ingredient")
}

// ParseIngredients runs the server-side parser over the given ingredient
// strings. The result is advisory only. Parser is "nlp" or "brute";
// blank means "nlp".
func (c *Client) ParseIngredients(ctx context.Context, texts []string, parser string) ([]ParsedHint, error) {
	if parser == "" {
		parser = "nlp"
	}
	body := parseRequest{Parser: parser, Ingredients: texts}

	var results []parseResult
	if err := c.do(ctx, http.MethodPost, "/api/parser/ingredients", nil, body, &results, "parse ingredients"); err != nil {
		return nil, err
	}
	hints := make([]ParsedHint, 0, len(results))
	for _, r := range results {
		hints = append(hints, r.hint())
	}
	return hints, nil
}

func hasAlias(aliases []Alias, name string) bool {
	for _, a := range aliases {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

// listPages drains a paginated list endpoint.
func listPages[T any](ctx context.Context, c *Client, path, op string, progress func(cur, total int)) ([]T, error) {
	var all []T
	for pageNum := 1; ; pageNum++ {
		query := url.Values{
			"page":    {strconv.Itoa(pageNum)},
			"perPage": {strconv.Itoa(perPage)},
		}
		var pg page[T]
		if err := c.do(ctx, http.MethodGet, path, query, nil, &pg, op); err != nil {
			return nil, err
		}
		all = append(all, pg.Items...)
		c.logger.Debug("fetched page", "op", op, "page", pageNum, "items", len(pg.Items))
		if progress != nil && pg.Total > 0 {
			progress(len(all), pg.Total)
		}
		if pg.Next == "" || len(pg.Items) == 0 {
			break
		}
	}
	c.logger.Info("fetched all pages", "op", op, "items", len(all))
	return all, nil
}

// do performs one call with classification and transient retry. Writes carry
// an Idempotency-Key that is stable across the retries of a single call, so
// a retried create cannot produce two entities.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, op string) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return &APIError{Kind: KindOther, Op: op, Message: "canceled while waiting for connection", Err: err}
	}
	defer c.sem.Release(1)

	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return &APIError{Kind: KindOther, Op: op, Message: "encode request body", Err: err}
		}
	}

	idempotencyKey := ""
	if method != http.MethodGet {
		idempotencyKey = uuid.NewString()
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := c.attempt(ctx, method, path, query, encoded, out, op, idempotencyKey)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errorsAs(err, &apiErr) && apiErr.Kind == KindTransient {
			c.logger.Warn("transient failure, will retry", "op", op, "attempt", attempts, "error", apiErr.Message)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoffBase
	bo.MaxInterval = c.backoffCap
	bo.RandomizationFactor = 1 // full jitter
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx))
	if err != nil {
		var apiErr *APIError
		if errorsAs(err, &apiErr) {
			apiErr.Attempts = attempts
			return apiErr
		}
		return &APIError{Kind: KindOther, Op: op, Attempts: attempts, Message: "request failed", Err: err}
	}
	return nil
}

// attempt performs a single HTTP exchange under the per-request deadline.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, body []byte, out any, op, idempotencyKey string) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, fullURL, reader)
	if err != nil {
		return &APIError{Kind: KindOther, Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Kind: classifyTransport(err), Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request", "method", method, "path", path,
		"status", resp.StatusCode, "elapsed", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode >= 400 {
		msg := readErrorBody(resp.Body)
		return &APIError{
			Kind:    ClassifyStatus(resp.StatusCode),
			Op:      op,
			Status:  resp.StatusCode,
			Message: msg,
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Kind: KindOther, Op: op, Message: "decode response", Err: err}
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// readErrorBody extracts a short message from an error response. Mealie
// returns {"detail": ...}; fall back to the raw body, truncated.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil || len(data) == 0 {
		return "request failed"
	}
	var envelope struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &envelope) == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if s, ok := envelope.Detail.(string); ok && s != "" {
			return s
		}
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// errorsAs is a local alias to keep the retry closure readable.
func errorsAs(err error, target **APIError) bool {
	for err != nil {
		if e, ok := err.(*APIError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
