package store

import (
	"context"
	"fmt"

	"github.com/i5heu/ouroboros-cascade/pkg/dhtop"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
)

// Integrate registers the metadata of op in meta.
func Integrate(ctx context.Context, meta MetadataStore, op dhtop.Op) error {
	shh := op.Header
	timed := shh.Timed()

	var err error
	switch op.Type {
	case dhtop.StoreElement:
		err = meta.RegisterStoreElement(ctx, shh.Hash())
	case dhtop.StoreEntry:
		entry, _, ok := shh.Header().EntryData()
		if !ok {
			return fmt.Errorf("%w: %s carries no entry", ErrInvalidSysMeta, shh.Header().Type())
		}
		err = meta.RegisterRawOnEntry(ctx, entry, NewEntryHeaderVal(timed))
	case dhtop.RegisterUpdatedBy:
		var u model.Update
		if u, err = model.AsUpdate(shh.Header()); err != nil {
			return err
		}
		if err = meta.RegisterRawOnEntry(ctx, u.OriginalEntryAddress, UpdateVal(timed)); err != nil {
			return err
		}
		err = meta.RegisterRawOnHeader(ctx, u.OriginalHeaderAddress, UpdateVal(timed))
	case dhtop.RegisterDeletedBy:
		var d model.Delete
		if d, err = model.AsDelete(shh.Header()); err != nil {
			return err
		}
		err = meta.RegisterRawOnHeader(ctx, d.DeletesAddress, DeleteVal(timed))
	case dhtop.RegisterDeletedEntryHeader:
		var d model.Delete
		if d, err = model.AsDelete(shh.Header()); err != nil {
			return err
		}
		err = meta.RegisterRawOnEntry(ctx, d.DeletesEntryAddress, DeleteVal(timed))
	case dhtop.RegisterAddLink:
		var c model.CreateLink
		if c, err = model.AsCreateLink(shh.Header()); err != nil {
			return err
		}
		err = meta.RegisterLinkAdd(ctx, model.LinkMetaValOf(shh.Hash(), c))
	case dhtop.RegisterRemoveLink:
		var d model.DeleteLink
		if d, err = model.AsDeleteLink(shh.Header()); err != nil {
			return err
		}
		err = meta.RegisterLinkRemove(ctx, d.LinkAddAddress, timed)
	default:
		return fmt.Errorf("%w: op %s", ErrInvalidSysMeta, op.Type)
	}
	if err != nil {
		return fmt.Errorf("integrate %s of %s: %w", op.Type, shh.Hash(), err)
	}
	return nil
}

// Merge stores el and integrates every op it produces.
func Merge(
	ctx context.Context,
	elements ElementStore,
	meta MetadataStore,
	el model.Element,
) error {
	if err := elements.Put(ctx, el.SignedHeader, el.Entry); err != nil {
		return fmt.Errorf("put element %s: %w", el.HeaderHash(), err)
	}
	for _, op := range dhtop.Produce(el) {
		if err := Integrate(ctx, meta, op); err != nil {
			return err
		}
	}
	return nil
}

// MergeGroup stores g and integrates the ops of every element in it.
func MergeGroup(
	ctx context.Context,
	elements ElementStore,
	meta MetadataStore,
	g model.ElementGroup,
) error {
	if err := elements.PutElementGroup(ctx, g); err != nil {
		return fmt.Errorf("put element group of %s: %w", g.EntryHash(), err)
	}
	for _, op := range dhtop.ProduceGroup(g) {
		if err := Integrate(ctx, meta, op); err != nil {
			return err
		}
	}
	return nil
}
