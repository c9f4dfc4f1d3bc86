package directory

import (
	"context"
	"fmt"
	"net/url"

	"crewsync/internal/domain"
)

// GetGroup fetches a single group by id.
func (c *Client) GetGroup(ctx context.Context, groupID string) (*domain.DirectoryGroup, error) {
	var g domain.DirectoryGroup
	if err := c.do(ctx, "GET", "/groups/"+url.PathEscape(groupID), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGroup creates a plain (unmanaged) group. Most callers want
// CreateFullGroup instead.
func (c *Client) CreateGroup(ctx context.Context, displayName, description, mailNickname string) (*domain.DirectoryGroup, error) {
	body := map[string]any{
		"displayName":     displayName,
		"description":     description,
		"mailNickname":    mailNickname,
		"mailEnabled":     true,
		"securityEnabled": false,
		"groupTypes":      []string{"Unified"},
	}
	var g domain.DirectoryGroup
	if err := c.do(ctx, "POST", "/groups", body, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGroupName patches the group's display name.
func (c *Client) UpdateGroupName(ctx context.Context, groupID, displayName string) error {
	body := map[string]any{"displayName": displayName}
	return c.do(ctx, "PATCH", "/groups/"+url.PathEscape(groupID), body, nil)
}

// DeleteGroup deletes a group. Not-found is returned as an APIError; callers
// that treat deletion as idempotent check IsNotFound.
func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, "DELETE", "/groups/"+url.PathEscape(groupID), nil, nil)
}

// userList is the wire shape of a member/owner collection response.
type userList struct {
	Value []domain.DirectoryUser `json:"value"`
}

// ListMembers returns the group's members, restricted to user-type
// principals; nested groups and service principals are excluded.
func (c *Client) ListMembers(ctx context.Context, groupID string) ([]domain.DirectoryUser, error) {
	return c.listUsers(ctx, groupID, "members")
}

// ListOwners returns the group's owners, restricted to user-type principals.
func (c *Client) ListOwners(ctx context.Context, groupID string) ([]domain.DirectoryUser, error) {
	return c.listUsers(ctx, groupID, "owners")
}

func (c *Client) listUsers(ctx context.Context, groupID, relation string) ([]domain.DirectoryUser, error) {
	path := fmt.Sprintf("/groups/%s/%s/microsoft.graph.user?$select=id,displayName,userPrincipalName",
		url.PathEscape(groupID), relation)
	var list userList
	if err := c.do(ctx, "GET", path, nil, &list); err != nil {
		return nil, err
	}
	return list.Value, nil
}

// refBody builds the @odata.id reference body for add-member/add-owner.
func (c *Client) refBody(userID string) map[string]string {
	return map[string]string{"@odata.id": c.baseURL + "/directoryObjects/" + userID}
}

// AddMember adds a user to the group's members. Already-a-member responses
// are treated as success.
func (c *Client) AddMember(ctx context.Context, groupID, userID string) error {
	err := c.do(ctx, "POST",
		fmt.Sprintf("/groups/%s/members/$ref", url.PathEscape(groupID)),
		c.refBody(userID), nil)
	if err != nil && isAlreadyExists(err) {
		return nil
	}
	return err
}

// RemoveMember removes a user from the group's members. Not-found (user was
// never a member, or already removed) is treated as success.
func (c *Client) RemoveMember(ctx context.Context, groupID, userID string) error {
	err := c.do(ctx, "DELETE",
		fmt.Sprintf("/groups/%s/members/%s/$ref", url.PathEscape(groupID), url.PathEscape(userID)),
		nil, nil)
	if err != nil && IsNotFound(err) {
		return nil
	}
	return err
}

// AddOwner adds a user to the group's owners. Already-an-owner responses are
// treated as success.
func (c *Client) AddOwner(ctx context.Context, groupID, userID string) error {
	err := c.do(ctx, "POST",
		fmt.Sprintf("/groups/%s/owners/$ref", url.PathEscape(groupID)),
		c.refBody(userID), nil)
	if err != nil && isAlreadyExists(err) {
		return nil
	}
	return err
}

// RemoveOwner removes a user from the group's owners. Not-found is treated
// as success.
func (c *Client) RemoveOwner(ctx context.Context, groupID, userID string) error {
	err := c.do(ctx, "DELETE",
		fmt.Sprintf("/groups/%s/owners/%s/$ref", url.PathEscape(groupID), url.PathEscape(userID)),
		nil, nil)
	if err != nil && IsNotFound(err) {
		return nil
	}
	return err
}

// ResolveUser looks up a user by principal name.
func (c *Client) ResolveUser(ctx context.Context, principalName string) (*domain.DirectoryUser, error) {
	var u domain.DirectoryUser
	path := "/users/" + url.PathEscape(principalName) + "?$select=id,displayName,userPrincipalName"
	if err := c.do(ctx, "GET", path, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
