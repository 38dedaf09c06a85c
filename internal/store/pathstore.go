package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/pdfrag/internal/doctree"
)

const (
	pathstoreWriteConcurrency = 8
	pathstoreListLimit        = 10000
)

// Pathstore keeps each record as a small tree of nodes:
//
//	{prefix}/documents/{docID}/meta             record summary and markdown
//	{prefix}/documents/{docID}/sections         section list
//	{prefix}/documents/{docID}/chunks/{chunkID} one node per chunk
//	{prefix}/hashes/{contentHash}               docID
type Pathstore struct {
	client *pathstoreClient
	prefix string

	// WriteConcurrency caps parallel chunk writes during Save.
	WriteConcurrency int
}

func NewPathstore(baseURL, apiKey, prefix string) *Pathstore {
	if prefix == "" {
		prefix = "pdfrag"
	}
	return &Pathstore{
		client:           newPathstoreClient(strings.TrimRight(baseURL, "/"), apiKey),
		prefix:           strings.Trim(prefix, "/"),
		WriteConcurrency: pathstoreWriteConcurrency,
	}
}

type storedChunk struct {
	Index int           `json:"index"`
	Chunk doctree.Chunk `json:"chunk"`
}

func (p *Pathstore) docKey(docID string) string {
	return p.prefix + "/documents/" + url.PathEscape(docID)
}

func (p *Pathstore) hashKey(hash string) string {
	return p.prefix + "/hashes/" + url.PathEscape(hash)
}

func (p *Pathstore) Save(ctx context.Context, rec Record) error {
	if err := rec.normalize(); err != nil {
		return err
	}
	base := p.docKey(rec.DocID)

	old, err := p.meta(ctx, rec.DocID)
	switch {
	case err == nil:
		if err := p.client.deleteNode(ctx, base, true); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if old.ContentHash != "" && old.ContentHash != rec.ContentHash {
			if err := p.client.deleteNode(ctx, p.hashKey(old.ContentHash), false); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	if err := p.client.putNode(ctx, base+"/sections", nodeRequest{Value: rec.Sections, Source: rec.Source}); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.WriteConcurrency, 1))
	for i, c := range rec.Chunks {
		key := base + "/chunks/" + url.PathEscape(c.ID)
		val := storedChunk{Index: i, Chunk: c}
		g.Go(func() error {
			return p.client.putNode(gctx, key, nodeRequest{Value: val, Source: rec.Source})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// meta goes last so listings only see complete documents
	meta := rec
	meta.Sections = nil
	meta.Chunks = nil
	if err := p.client.putNode(ctx, base+"/meta", nodeRequest{Value: meta, Source: rec.Source}); err != nil {
		return err
	}
	if rec.ContentHash != "" {
		if err := p.client.putNode(ctx, p.hashKey(rec.ContentHash), nodeRequest{Value: rec.DocID}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pathstore) meta(ctx context.Context, docID string) (Record, error) {
	node, err := p.client.getNode(ctx, p.docKey(docID)+"/meta")
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(node.Value, &rec); err != nil {
		return Record{}, fmt.Errorf("decode meta %s: %w", docID, err)
	}
	return rec, nil
}

func (p *Pathstore) Get(ctx context.Context, docID string) (Record, error) {
	rec, err := p.meta(ctx, docID)
	if err != nil {
		return Record{}, err
	}
	base := p.docKey(docID)

	node, err := p.client.getNode(ctx, base+"/sections")
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}
	if node != nil {
		if err := json.Unmarshal(node.Value, &rec.Sections); err != nil {
			return Record{}, fmt.Errorf("decode sections %s: %w", docID, err)
		}
	}

	nodes, err := p.client.listChildren(ctx, base+"/chunks", pathstoreListLimit)
	if err != nil {
		return Record{}, err
	}
	stored := make([]storedChunk, 0, len(nodes))
	for _, n := range nodes {
		var sc storedChunk
		if err := json.Unmarshal(n.Value, &sc); err != nil {
			return Record{}, fmt.Errorf("decode chunk %s: %w", n.Key, err)
		}
		stored = append(stored, sc)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Index < stored[j].Index })
	for _, sc := range stored {
		rec.Chunks = append(rec.Chunks, sc.Chunk)
	}
	return rec, nil
}

func (p *Pathstore) List(ctx context.Context) ([]Record, error) {
	nodes, err := p.client.listChildren(ctx, p.prefix+"/documents", pathstoreListLimit)
	if err != nil {
		return nil, err
	}
	out := []Record{}
	for _, n := range nodes {
		// responses may spell key paths with dots
		if !strings.HasSuffix(n.Key, "/meta") && !strings.HasSuffix(n.Key, ".meta") {
			continue
		}
		var rec Record
		if err := json.Unmarshal(n.Value, &rec); err != nil {
			return nil, fmt.Errorf("decode meta %s: %w", n.Key, err)
		}
		out = append(out, rec.Summary())
	}
	sortNewestFirst(out)
	return out, nil
}

func (p *Pathstore) Delete(ctx context.Context, docID string) error {
	rec, err := p.meta(ctx, docID)
	if err != nil {
		return err
	}
	if err := p.client.deleteNode(ctx, p.docKey(docID), true); err != nil {
		return err
	}
	if rec.ContentHash != "" {
		if err := p.client.deleteNode(ctx, p.hashKey(rec.ContentHash), false); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

func (p *Pathstore) FindByHash(ctx context.Context, hash string) (string, error) {
	node, err := p.client.getNode(ctx, p.hashKey(hash))
	if err != nil {
		return "", err
	}
	var docID string
	if err := json.Unmarshal(node.Value, &docID); err != nil {
		return "", fmt.Errorf("decode hash %s: %w", hash, err)
	}
	return docID, nil
}

func (p *Pathstore) Close(context.Context) error {
	p.client.close()
	return nil
}
