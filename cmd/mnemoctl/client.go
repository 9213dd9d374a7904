package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// client wraps the service's REST API for the CLI commands.
type client struct {
	http *resty.Client
}

func newClient(baseURL string) *client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	return &client{http: c}
}

func (c *client) userPath(userID, suffix string) string {
	return fmt.Sprintf("/api/users/%s/memories%s", userID, suffix)
}

// do runs the request and pretty-prints the JSON response body to out.
func (c *client) print(out io.Writer, resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	var pretty json.RawMessage = resp.Body()
	buf, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		_, werr := fmt.Fprintln(out, resp.String())
		return werr
	}
	_, err = fmt.Fprintln(out, string(buf))
	return err
}

func (c *client) remember(out io.Writer, userID, message string) error {
	resp, err := c.http.R().
		SetBody(map[string]string{"message": message}).
		Post(c.userPath(userID, ""))
	return c.print(out, resp, err)
}

func (c *client) forget(out io.Writer, userID, message string) error {
	resp, err := c.http.R().
		SetBody(map[string]string{"message": message}).
		Delete(c.userPath(userID, ""))
	return c.print(out, resp, err)
}

func (c *client) search(out io.Writer, userID, query string, topN int) error {
	resp, err := c.http.R().
		SetBody(map[string]interface{}{"query": query, "topN": topN}).
		Post(c.userPath(userID, "/search"))
	return c.print(out, resp, err)
}

func (c *client) list(out io.Writer, userID string, limit int) error {
	req := c.http.R()
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}
	resp, err := req.Get(c.userPath(userID, ""))
	return c.print(out, resp, err)
}

func (c *client) stats(out io.Writer, userID string) error {
	resp, err := c.http.R().Get(c.userPath(userID, "/summary"))
	return c.print(out, resp, err)
}

func (c *client) status(out io.Writer) error {
	resp, err := c.http.R().Get("/api/health")
	return c.print(out, resp, err)
}
