package admin

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DefaultGroupName is the group every server and table belongs to until moved.
const DefaultGroupName = "default"

// Coordinator is the in-process reference implementation of the group
// registry. It implements Transport directly, dispatching on method name the
// way a wire transport would dispatch on endpoint.
type Coordinator struct {
	mu     sync.Mutex
	groups map[string]*GroupInfo

	declineBalance bool
}

// NewCoordinator creates a coordinator with an empty default group.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		groups: map[string]*GroupInfo{
			DefaultGroupName: {Name: DefaultGroupName},
		},
	}
}

// RegisterServer places a serving node in the default group. Idempotent.
func (c *Coordinator) RegisterServer(server Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.groupOfServerLocked(server) != nil {
		return
	}
	def := c.groups[DefaultGroupName]
	def.Servers = append(def.Servers, server)
}

// RegisterTable pins a table to the default group. Idempotent.
func (c *Coordinator) RegisterTable(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.groupOfTableLocked(table) != nil {
		return
	}
	def := c.groups[DefaultGroupName]
	def.Tables = append(def.Tables, table)
}

// SetBalanceDecline makes subsequent balance requests report that balancing
// was declined. Test hook.
func (c *Coordinator) SetBalanceDecline(decline bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declineBalance = decline
}

// Call implements Transport.
func (c *Coordinator) Call(ctx context.Context, method string, req, resp interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch method {
	case "GetGroupInfo":
		r := req.(*getGroupInfoRequest)
		resp.(*getGroupInfoResponse).Group = copyGroup(c.groups[r.GroupName])
	case "GetGroupInfoOfTable":
		r := req.(*getGroupInfoOfTableRequest)
		resp.(*getGroupInfoOfTableResponse).Group = copyGroup(c.groupOfTableLocked(r.Table))
	case "GetGroupOfServer":
		r := req.(*getGroupOfServerRequest)
		resp.(*getGroupOfServerResponse).Group = copyGroup(c.groupOfServerLocked(r.Server))
	case "MoveServers":
		r := req.(*moveServersRequest)
		return c.moveServersLocked(r.Servers, r.TargetGroup)
	case "MoveTables":
		r := req.(*moveTablesRequest)
		return c.moveTablesLocked(r.Tables, r.TargetGroup)
	case "AddGroup":
		r := req.(*addGroupRequest)
		if r.GroupName == "" {
			return fmt.Errorf("group name must not be empty")
		}
		if _, ok := c.groups[r.GroupName]; ok {
			return fmt.Errorf("group %q already exists", r.GroupName)
		}
		c.groups[r.GroupName] = &GroupInfo{Name: r.GroupName}
	case "RemoveGroup":
		r := req.(*removeGroupRequest)
		g, ok := c.groups[r.GroupName]
		if !ok {
			return fmt.Errorf("group %q does not exist", r.GroupName)
		}
		if r.GroupName == DefaultGroupName {
			return fmt.Errorf("the default group cannot be removed")
		}
		if len(g.Servers) > 0 || len(g.Tables) > 0 {
			return fmt.Errorf("group %q is not empty", r.GroupName)
		}
		delete(c.groups, r.GroupName)
	case "BalanceGroup":
		r := req.(*balanceGroupRequest)
		if _, ok := c.groups[r.GroupName]; !ok {
			return fmt.Errorf("group %q does not exist", r.GroupName)
		}
		resp.(*balanceGroupResponse).BalanceRan = !c.declineBalance
	case "ListGroupsInfo":
		names := make([]string, 0, len(c.groups))
		for name := range c.groups {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]*GroupInfo, 0, len(names))
		for _, name := range names {
			out = append(out, copyGroup(c.groups[name]))
		}
		resp.(*listGroupsResponse).Groups = out
	default:
		return fmt.Errorf("unknown admin method %q", method)
	}
	return nil
}

func (c *Coordinator) groupOfServerLocked(server Address) *GroupInfo {
	for _, g := range c.groups {
		for _, s := range g.Servers {
			if s == server {
				return g
			}
		}
	}
	return nil
}

func (c *Coordinator) groupOfTableLocked(table string) *GroupInfo {
	for _, g := range c.groups {
		for _, t := range g.Tables {
			if t == table {
				return g
			}
		}
	}
	return nil
}

func (c *Coordinator) moveServersLocked(servers []Address, targetGroup string) error {
	target, ok := c.groups[targetGroup]
	if !ok {
		return fmt.Errorf("target group %q does not exist", targetGroup)
	}
	for _, server := range servers {
		cur := c.groupOfServerLocked(server)
		if cur == nil {
			return fmt.Errorf("server %s is not registered", server)
		}
		if cur.Name == targetGroup {
			continue
		}
		cur.Servers = removeAddress(cur.Servers, server)
		target.Servers = append(target.Servers, server)
	}
	return nil
}

func (c *Coordinator) moveTablesLocked(tables []string, targetGroup string) error {
	target, ok := c.groups[targetGroup]
	if !ok {
		return fmt.Errorf("target group %q does not exist", targetGroup)
	}
	for _, table := range tables {
		cur := c.groupOfTableLocked(table)
		if cur == nil {
			return fmt.Errorf("table %q is not registered", table)
		}
		if cur.Name == targetGroup {
			continue
		}
		cur.Tables = removeString(cur.Tables, table)
		target.Tables = append(target.Tables, table)
	}
	return nil
}

func removeAddress(list []Address, a Address) []Address {
	out := list[:0]
	for _, v := range list {
		if v != a {
			out = append(out, v)
		}
	}
	return out
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func copyGroup(g *GroupInfo) *GroupInfo {
	if g == nil {
		return nil
	}
	out := &GroupInfo{Name: g.Name}
	out.Servers = append(out.Servers, g.Servers...)
	out.Tables = append(out.Tables, g.Tables...)
	return out
}
