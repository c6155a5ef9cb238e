package admin

import (
	"context"

	scanerrors "github.com/rangekv/rangekv/client/errors"
	"github.com/rangekv/rangekv/logger"
)

// Transport carries one admin request/response pair to the coordinator.
// Implementations marshal req, invoke the named method and unmarshal into
// resp. The reference in-process transport lives with the region store.
type Transport interface {
	Call(ctx context.Context, method string, req, resp interface{}) error
}

// Client issues server-group administration calls. All transport failures
// surface uniformly as remote-call errors wrapping the cause.
type Client struct {
	transport Transport
}

// NewClient creates an admin client over the given transport.
func NewClient(transport Transport) *Client {
	return &Client{transport: transport}
}

func (c *Client) call(ctx context.Context, method string, req, resp interface{}) error {
	if err := c.transport.Call(ctx, method, req, resp); err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrCodeRemoteCall, method, "admin call failed")
	}
	return nil
}

// GetGroup fetches a group by name. A missing group yields a nil GroupInfo,
// not an error.
func (c *Client) GetGroup(ctx context.Context, name string) (*GroupInfo, error) {
	var resp getGroupInfoResponse
	if err := c.call(ctx, "GetGroupInfo", &getGroupInfoRequest{GroupName: name}, &resp); err != nil {
		return nil, err
	}
	return resp.Group, nil
}

// GetGroupOfTable fetches the group a table is pinned to.
func (c *Client) GetGroupOfTable(ctx context.Context, table string) (*GroupInfo, error) {
	var resp getGroupInfoOfTableResponse
	if err := c.call(ctx, "GetGroupInfoOfTable", &getGroupInfoOfTableRequest{Table: table}, &resp); err != nil {
		return nil, err
	}
	return resp.Group, nil
}

// GetGroupOfServer fetches the group a serving node belongs to.
func (c *Client) GetGroupOfServer(ctx context.Context, server Address) (*GroupInfo, error) {
	var resp getGroupOfServerResponse
	if err := c.call(ctx, "GetGroupOfServer", &getGroupOfServerRequest{Server: server}, &resp); err != nil {
		return nil, err
	}
	return resp.Group, nil
}

// MoveServers reassigns serving nodes to the target group.
func (c *Client) MoveServers(ctx context.Context, servers []Address, targetGroup string) error {
	logger.InfoContext(ctx, "moving servers", "count", len(servers), "target_group", targetGroup)
	var resp moveServersResponse
	return c.call(ctx, "MoveServers", &moveServersRequest{Servers: servers, TargetGroup: targetGroup}, &resp)
}

// MoveTables repins tables to the target group.
func (c *Client) MoveTables(ctx context.Context, tables []string, targetGroup string) error {
	logger.InfoContext(ctx, "moving tables", "count", len(tables), "target_group", targetGroup)
	var resp moveTablesResponse
	return c.call(ctx, "MoveTables", &moveTablesRequest{Tables: tables, TargetGroup: targetGroup}, &resp)
}

// AddGroup creates an empty group.
func (c *Client) AddGroup(ctx context.Context, name string) error {
	var resp addGroupResponse
	return c.call(ctx, "AddGroup", &addGroupRequest{GroupName: name}, &resp)
}

// RemoveGroup deletes a group. The coordinator rejects removal of non-empty
// groups; that rejection arrives as a remote-call error.
func (c *Client) RemoveGroup(ctx context.Context, name string) error {
	var resp removeGroupResponse
	return c.call(ctx, "RemoveGroup", &removeGroupRequest{GroupName: name}, &resp)
}

// BalanceGroup triggers a balance run for the group. It reports whether the
// coordinator actually ran the balancer; false means balancing was declined,
// for example because regions were in transition.
func (c *Client) BalanceGroup(ctx context.Context, name string) (bool, error) {
	var resp balanceGroupResponse
	if err := c.call(ctx, "BalanceGroup", &balanceGroupRequest{GroupName: name}, &resp); err != nil {
		return false, err
	}
	return resp.BalanceRan, nil
}

// ListGroups returns every group known to the coordinator.
func (c *Client) ListGroups(ctx context.Context) ([]*GroupInfo, error) {
	var resp listGroupsResponse
	if err := c.call(ctx, "ListGroupsInfo", &listGroupsRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}
