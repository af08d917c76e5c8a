package pve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// QemuPath builds /nodes/{node}/qemu[/{vmid}[/parts...]].
func QemuPath(node string, vmid int, parts ...string) string {
	p := fmt.Sprintf("/nodes/%s/qemu", url.PathEscape(node))
	if vmid > 0 {
		p += "/" + strconv.Itoa(vmid)
	}
	for _, part := range parts {
		p += "/" + strings.Trim(part, "/")
	}
	return p
}

func (c *Client) ListQemu(ctx context.Context, node string) ([]QemuSummary, error) {
	if strings.TrimSpace(node) == "" {
		return nil, errors.New("pve: node is required")
	}
	var out []QemuSummary
	if err := c.getInto(ctx, QemuPath(node, 0), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CurrentStatus(ctx context.Context, node string, vmid int) (QemuSummary, error) {
	var out QemuSummary
	if err := c.getInto(ctx, QemuPath(node, vmid, "status", "current"), &out); err != nil {
		return QemuSummary{}, err
	}
	if out.VMID == 0 {
		out.VMID = flexInt(vmid)
	}
	return out, nil
}

func (c *Client) Config(ctx context.Context, node string, vmid int) (QemuConfig, error) {
	var out QemuConfig
	if err := c.getInto(ctx, QemuPath(node, vmid, "config"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GuestInterfaces needs a running guest agent; PVE answers 500 without one.
func (c *Client) GuestInterfaces(ctx context.Context, node string, vmid int) ([]GuestInterface, error) {
	path := QemuPath(node, vmid, "agent", "network-get-interfaces")
	data, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	// newer releases wrap the list in {"result": [...]}
	var wrapped struct {
		Result []GuestInterface `json:"result"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Result != nil {
		return wrapped.Result, nil
	}
	var list []GuestInterface
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &ParseError{Method: http.MethodGet, Path: path, Err: err}
	}
	return list, nil
}

type CloneOptions struct {
	NewID int
	Name  string
	Full  bool
}

// Clone returns the task UPID.
func (c *Client) Clone(ctx context.Context, node string, vmid int, opts CloneOptions) (string, error) {
	if opts.NewID <= 0 {
		return "", errors.New("pve: clone needs a positive newid")
	}
	form := url.Values{}
	form.Set("newid", strconv.Itoa(opts.NewID))
	if n := strings.TrimSpace(opts.Name); n != "" {
		form.Set("name", n)
	}
	if opts.Full {
		form.Set("full", "1")
	}
	data, err := c.Post(ctx, QemuPath(node, vmid, "clone"), form)
	if err != nil {
		return "", err
	}
	return TaskID(data), nil
}

// TaskID extracts the UPID string from an action answer, if any.
func TaskID(data json.RawMessage) string {
	var upid string
	if err := json.Unmarshal(data, &upid); err != nil {
		return ""
	}
	return upid
}
