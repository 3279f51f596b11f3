package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maxpoletaev/shardcoord/api/model"
)

var ErrRequestFailed = errors.New("request failed")

// client talks to the admin API of a node.
type client struct {
	base string
	http *http.Client
}

func newClient(addr string, timeout time.Duration) *client {
	return &client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e model.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return fmt.Errorf("%w: %s", ErrRequestFailed, resp.Status)
		}

		return fmt.Errorf("%w: %s: %s", ErrRequestFailed, resp.Status, e.Error)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *client) State(ctx context.Context) (*model.GetStateResponse, error) {
	resp := &model.GetStateResponse{}
	if err := c.do(ctx, http.MethodGet, "/state", nil, nil, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *client) Nodes(ctx context.Context) (*model.GetNodesResponse, error) {
	resp := &model.GetNodesResponse{}
	if err := c.do(ctx, http.MethodGet, "/nodes", nil, nil, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *client) Tasks(ctx context.Context) (*model.GetTasksResponse, error) {
	resp := &model.GetTasksResponse{}
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, nil, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

type searchParams struct {
	Indices      []string
	Preference   string
	ClusterAlias string
}

func (c *client) SearchShards(ctx context.Context, params searchParams) (*model.SearchShardsResponse, error) {
	query := url.Values{}
	query.Set("index", strings.Join(params.Indices, ","))

	if params.Preference != "" {
		query.Set("preference", params.Preference)
	}

	if params.ClusterAlias != "" {
		query.Set("cluster_alias", params.ClusterAlias)
	}

	resp := &model.SearchShardsResponse{}
	if err := c.do(ctx, http.MethodGet, "/search_shards", query, nil, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *client) CreateIndex(ctx context.Context, name string, params model.CreateIndexParams) (*model.TaskResponse, error) {
	resp := &model.TaskResponse{}
	if err := c.do(ctx, http.MethodPut, "/indices/"+url.PathEscape(name), nil, params, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *client) DeleteIndex(ctx context.Context, name string) (*model.TaskResponse, error) {
	resp := &model.TaskResponse{}
	if err := c.do(ctx, http.MethodDelete, "/indices/"+url.PathEscape(name), nil, nil, resp); err != nil {
		return nil, err
	}

	return resp, nil
}
