package directory

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sethvargo/go-retry"

	"crewsync/internal/domain"
)

// CreateFullGroup creates a plain group and converts it into a managed one.
// The two resources propagate asynchronously on the directory side, so the
// conversion is retried; if it still fails after all attempts the plain
// group is deleted before the error is surfaced: an orphaned half-created
// group is never left behind.
func (c *Client) CreateFullGroup(ctx context.Context, displayName, description, aliasHint string, settings domain.TeamSettings) (*domain.DirectoryGroup, error) {
	plain, err := c.CreateGroup(ctx, displayName, description, aliasHint)
	if err != nil {
		return nil, fmt.Errorf("create group %q: %w", displayName, err)
	}

	managed, err := c.ConvertToManagedGroup(ctx, plain.ID, settings)
	if err != nil {
		c.logger.Warn("managed-group conversion failed, deleting plain group",
			"group_id", plain.ID, "display_name", displayName, "error", err)
		if delErr := c.DeleteGroup(ctx, plain.ID); delErr != nil && !IsNotFound(delErr) {
			c.logger.Error("orphan cleanup failed", "group_id", plain.ID, "error", delErr)
		}
		return nil, fmt.Errorf("convert group %q: %w", displayName, err)
	}

	return managed, nil
}

// ConvertToManagedGroup upgrades a plain group into a fully-featured managed
// group via PUT on the group's team resource.
//
// Not-found and server-error responses are retried with a fixed delay: right
// after creation the group may not have propagated to the team subsystem
// yet. A conflict response means a prior attempt already succeeded, so the
// existing group state is fetched and returned instead of erroring.
func (c *Client) ConvertToManagedGroup(ctx context.Context, groupID string, settings domain.TeamSettings) (*domain.DirectoryGroup, error) {
	body := map[string]any{
		"memberSettings": map[string]any{
			"allowCreateUpdateChannels": settings.AllowMemberCreateChannels,
		},
		"guestSettings": map[string]any{
			"allowCreateUpdateChannels": settings.AllowGuests,
		},
	}
	path := fmt.Sprintf("/groups/%s/team", url.PathEscape(groupID))

	backoff := retry.WithMaxRetries(uint64(c.convertAttempts-1), retry.NewConstant(c.convertDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, "PUT", path, body, nil)
		if err == nil {
			return nil
		}
		if IsConflict(err) {
			// A prior attempt won the race; current state is authoritative.
			c.logger.Debug("conversion conflict, already managed", "group_id", groupID)
			return nil
		}
		if IsTransient(err) {
			c.logger.Debug("conversion not ready, retrying", "group_id", groupID, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return c.GetGroup(ctx, groupID)
}
