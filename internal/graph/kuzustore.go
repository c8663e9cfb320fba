//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given path. KuzuDB creates the leaf directory itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Story(
		id STRING,
		project_id STRING,
		who STRING,
		who_norm STRING,
		what STRING,
		why STRING,
		sentence STRING,
		source STRING,
		source_id STRING,
		confidence DOUBLE,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Cluster(
		key STRING,
		project_id STRING,
		cluster_id INT64,
		size INT64,
		sources STRING,
		representative STRING,
		headline STRING,
		PRIMARY KEY(key)
	)`,
	`CREATE REL TABLE IF NOT EXISTS MEMBER_OF(FROM Story TO Cluster, similarity DOUBLE)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddStory upserts a Story node.
func (s *KuzuStore) AddStory(_ context.Context, node StoryNode) error {
	return s.exec(
		`MERGE (s:Story {id: $id})
		SET s.project_id = $pid,
			s.who = $who,
			s.who_norm = $norm,
			s.what = $what,
			s.why = $why,
			s.sentence = $sentence,
			s.source = $source,
			s.source_id = $sid,
			s.confidence = $conf`,
		map[string]any{
			"id":       node.ID,
			"pid":      node.ProjectID,
			"who":      node.Who,
			"norm":     normalizePersona(node.Who),
			"what":     node.What,
			"why":      node.Why,
			"sentence": node.Sentence,
			"source":   node.Source,
			"sid":      node.SourceID,
			"conf":     node.Confidence,
		},
	)
}

// AddCluster upserts a Cluster node.
func (s *KuzuStore) AddCluster(_ context.Context, node ClusterNode) error {
	return s.exec(
		`MERGE (c:Cluster {key: $key})
		SET c.project_id = $pid,
			c.cluster_id = $cid,
			c.size = $size,
			c.sources = $sources,
			c.representative = $rep,
			c.headline = $headline`,
		map[string]any{
			"key":      node.Key(),
			"pid":      node.ProjectID,
			"cid":      int64(node.ClusterID),
			"size":     int64(node.Size),
			"sources":  strings.Join(node.Sources, ","),
			"rep":      node.Representative,
			"headline": node.Headline,
		},
	)
}

// AddMembership upserts a MEMBER_OF edge. Both endpoints must exist.
func (s *KuzuStore) AddMembership(_ context.Context, m Membership) error {
	key := clusterKey(m.ProjectID, m.ClusterID)
	rows, err := s.query(
		`MATCH (st:Story {id: $sid}), (c:Cluster {key: $key}) RETURN count(*)`,
		map[string]any{"sid": m.StoryID, "key": key},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 || toInt(rows[0][0]) == 0 {
		return fmt.Errorf("graph: membership: unknown story %s or cluster %s", m.StoryID, key)
	}
	return s.exec(
		`MATCH (st:Story {id: $sid}), (c:Cluster {key: $key})
		MERGE (st)-[r:MEMBER_OF]->(c)
		SET r.similarity = $sim`,
		map[string]any{"sid": m.StoryID, "key": key, "sim": m.Similarity},
	)
}

// ---------- Read operations ----------

// Clusters returns the project's clusters ordered by cluster ID.
func (s *KuzuStore) Clusters(_ context.Context, projectID string) ([]ClusterNode, error) {
	rows, err := s.query(
		`MATCH (c:Cluster) WHERE c.project_id = $pid
		RETURN c.cluster_id, c.size, c.sources, c.representative, c.headline
		ORDER BY c.cluster_id`,
		map[string]any{"pid": projectID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]ClusterNode, 0, len(rows))
	for _, r := range rows {
		var sources []string
		if joined := toString(r[2]); joined != "" {
			sources = strings.Split(joined, ",")
		}
		out = append(out, ClusterNode{
			ProjectID:      projectID,
			ClusterID:      toInt(r[0]),
			Size:           toInt(r[1]),
			Sources:        sources,
			Representative: toString(r[3]),
			Headline:       toString(r[4]),
		})
	}
	return out, nil
}

// storyColumns is the RETURN list decoded by rowsToStories.
const storyColumns = `s.id, s.project_id, s.who, s.what, s.why, s.sentence, s.source, s.source_id, s.confidence`

// ClusterStories returns a cluster's members, most similar first.
func (s *KuzuStore) ClusterStories(_ context.Context, projectID string, clusterID int) ([]StoryNode, error) {
	rows, err := s.query(
		`MATCH (s:Story)-[r:MEMBER_OF]->(c:Cluster {key: $key})
		RETURN `+storyColumns+`
		ORDER BY r.similarity DESC, s.id`,
		map[string]any{"key": clusterKey(projectID, clusterID)},
	)
	if err != nil {
		return nil, err
	}
	return rowsToStories(rows), nil
}

// StoriesByPersona returns the project's stories whose "who" matches,
// ignoring case and surrounding space, ordered by ID.
func (s *KuzuStore) StoriesByPersona(_ context.Context, projectID, who string) ([]StoryNode, error) {
	rows, err := s.query(
		`MATCH (s:Story) WHERE s.project_id = $pid AND s.who_norm = $who
		RETURN `+storyColumns+`
		ORDER BY s.id`,
		map[string]any{"pid": projectID, "who": normalizePersona(who)},
	)
	if err != nil {
		return nil, err
	}
	return rowsToStories(rows), nil
}

// ---------- Stats ----------

// Stats returns the project's node and edge counts.
func (s *KuzuStore) Stats(_ context.Context, projectID string) (*GraphStats, error) {
	var st GraphStats
	counts := []struct {
		cypher string
		dst    *int
	}{
		{"MATCH (s:Story) WHERE s.project_id = $pid RETURN count(s)", &st.StoryCount},
		{"MATCH (s:Story) WHERE s.project_id = $pid RETURN count(DISTINCT s.who_norm)", &st.PersonaCount},
		{"MATCH (c:Cluster) WHERE c.project_id = $pid RETURN count(c)", &st.ClusterCount},
		{"MATCH (:Story)-[r:MEMBER_OF]->(c:Cluster) WHERE c.project_id = $pid RETURN count(r)", &st.MembershipCount},
	}
	params := map[string]any{"pid": projectID}
	for _, c := range counts {
		rows, err := s.query(c.cypher, params)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 && len(rows[0]) > 0 {
			*c.dst = toInt(rows[0][0])
		}
	}
	return &st, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// rowsToStories decodes rows in storyColumns order.
func rowsToStories(rows [][]any) []StoryNode {
	out := make([]StoryNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, StoryNode{
			ID:         toString(r[0]),
			ProjectID:  toString(r[1]),
			Who:        toString(r[2]),
			What:       toString(r[3]),
			Why:        toString(r[4]),
			Sentence:   toString(r[5]),
			Source:     toString(r[6]),
			SourceID:   toString(r[7]),
			Confidence: toFloat64(r[8]),
		})
	}
	return out
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
