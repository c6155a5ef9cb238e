// Package admin provides the server-group administration client. Serving
// nodes are partitioned into named groups; tables are pinned to a group and
// balancing runs per group. The client is a thin, uniform wrapper over a
// request/response transport.
package admin

import (
	"fmt"
)

// Address identifies a serving node as host:port.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// GroupInfo describes one server group: its member nodes and the tables
// pinned to it.
type GroupInfo struct {
	Name    string
	Servers []Address
	Tables  []string
}

// Request and response messages, one pair per admin method. The transport
// carries them opaquely.

type getGroupInfoRequest struct {
	GroupName string
}

type getGroupInfoResponse struct {
	Group *GroupInfo
}

type getGroupInfoOfTableRequest struct {
	Table string
}

type getGroupInfoOfTableResponse struct {
	Group *GroupInfo
}

type getGroupOfServerRequest struct {
	Server Address
}

type getGroupOfServerResponse struct {
	Group *GroupInfo
}

type moveServersRequest struct {
	Servers     []Address
	TargetGroup string
}

type moveServersResponse struct{}

type moveTablesRequest struct {
	Tables      []string
	TargetGroup string
}

type moveTablesResponse struct{}

type addGroupRequest struct {
	GroupName string
}

type addGroupResponse struct{}

type removeGroupRequest struct {
	GroupName string
}

type removeGroupResponse struct{}

type balanceGroupRequest struct {
	GroupName string
}

type balanceGroupResponse struct {
	BalanceRan bool
}

type listGroupsRequest struct{}

type listGroupsResponse struct {
	Groups []*GroupInfo
}
