package media

import (
	"context"
	"errors"

	"github.com/rcliao/memeboard/internal/model"
	"github.com/rcliao/memeboard/internal/store"
)

// Edit applies an anonymous community edit. A locked meme yields
// store.ErrLocked and is left untouched.
func (c *Coordinator) Edit(ctx context.Context, id, title string, tags []string) (*model.Meme, error) {
	title, tags, err := model.ValidateMemeFields(title, tags)
	if err != nil {
		return nil, err
	}
	m, err := c.records.ApplyEdit(ctx, id, title, tags)
	if errors.Is(err, store.ErrLocked) {
		return nil, err
	}
	if err != nil {
		return nil, recordErr(err)
	}
	c.logger.Debug("meme %s edited (%d edits)", id, m.EditedByUsers)
	return m, nil
}

// Lock blocks community edits.
func (c *Coordinator) Lock(ctx context.Context, p model.Principal, id string) (*model.Meme, error) {
	v := true
	return c.setFlags(ctx, p, id, store.UpdateParams{IsLocked: &v})
}

// Unlock re-allows community edits.
func (c *Coordinator) Unlock(ctx context.Context, p model.Principal, id string) (*model.Meme, error) {
	v := false
	return c.setFlags(ctx, p, id, store.UpdateParams{IsLocked: &v})
}

// Feature promotes a meme in the featured sort.
func (c *Coordinator) Feature(ctx context.Context, p model.Principal, id string) (*model.Meme, error) {
	v := true
	return c.setFlags(ctx, p, id, store.UpdateParams{IsFeatured: &v})
}

func (c *Coordinator) Unfeature(ctx context.Context, p model.Principal, id string) (*model.Meme, error) {
	v := false
	return c.setFlags(ctx, p, id, store.UpdateParams{IsFeatured: &v})
}

func (c *Coordinator) setFlags(ctx context.Context, p model.Principal, id string, params store.UpdateParams) (*model.Meme, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	m, err := c.records.Update(ctx, id, params)
	if err != nil {
		return nil, recordErr(err)
	}
	c.logger.Info("meme %s flags set by %s: locked=%t featured=%t", id, p.UserID, m.IsLocked, m.IsFeatured)
	return m, nil
}
