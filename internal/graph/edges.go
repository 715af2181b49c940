package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// BatchUpsertCalls writes resolved and unresolved CALLS edges in transactions
// of at most edgeBatchSize. A resolved edge whose target is a Class is
// redirected to the class constructor when one exists; an unresolved edge is
// attached to an UnresolvedSymbol placeholder with is_resolved = false.
func (w *Writer) BatchUpsertCalls(ctx context.Context, repo string, edges []CallEdge) error {
	var symbolCalls, fileCalls, symbolMisses, fileMisses []map[string]any
	for _, e := range edges {
		params := map[string]any{
			"caller_name":    e.CallerName,
			"caller_line":    e.CallerLine,
			"caller_path":    e.CallerPath,
			"callee_name":    e.CalleeName,
			"callee_path":    e.CalleePath,
			"line_number":    e.LineNumber,
			"args":           e.Args,
			"full_call_name": e.FullCall,
		}
		switch {
		case e.Resolved && e.CallerName != "":
			symbolCalls = append(symbolCalls, params)
		case e.Resolved:
			fileCalls = append(fileCalls, params)
		case e.CallerName != "":
			symbolMisses = append(symbolMisses, params)
		default:
			fileMisses = append(fileMisses, params)
		}
	}

	groups := []struct {
		name  string
		query string
		items []map[string]any
	}{
		{"calls", `
			UNWIND $edges AS e
			MATCH (caller)
			WHERE (caller:Function OR caller:Class)
			  AND caller.name = e.caller_name AND caller.repo = $repo
			  AND caller.path = e.caller_path AND caller.line_number = e.caller_line
			MATCH (called)
			WHERE (called:Function OR called:Class)
			  AND called.name = e.callee_name AND called.repo = $repo
			  AND called.path = e.callee_path
			WITH caller, called, e
			OPTIONAL MATCH (called)-[:CONTAINS]->(init:Function)
			WHERE called:Class AND init.name IN ['__init__', 'constructor']
			WITH caller, coalesce(init, called) AS target, e
			MERGE (caller)-[r:CALLS {line_number: e.line_number}]->(target)
			SET r.args = e.args, r.full_call_name = e.full_call_name, r.is_resolved = true
		`, symbolCalls},
		{"file-calls", `
			UNWIND $edges AS e
			MATCH (caller:File {repo: $repo, path: e.caller_path})
			MATCH (called)
			WHERE (called:Function OR called:Class)
			  AND called.name = e.callee_name AND called.repo = $repo
			  AND called.path = e.callee_path
			WITH caller, called, e
			OPTIONAL MATCH (called)-[:CONTAINS]->(init:Function)
			WHERE called:Class AND init.name IN ['__init__', 'constructor']
			WITH caller, coalesce(init, called) AS target, e
			MERGE (caller)-[r:CALLS {line_number: e.line_number}]->(target)
			SET r.args = e.args, r.full_call_name = e.full_call_name, r.is_resolved = true
		`, fileCalls},
		{"unresolved", `
			UNWIND $edges AS e
			MATCH (caller)
			WHERE (caller:Function OR caller:Class)
			  AND caller.name = e.caller_name AND caller.repo = $repo
			  AND caller.path = e.caller_path AND caller.line_number = e.caller_line
			MERGE (u:UnresolvedSymbol {name: e.callee_name, repo: $repo})
			MERGE (caller)-[r:CALLS {line_number: e.line_number}]->(u)
			SET r.args = e.args, r.full_call_name = e.full_call_name, r.is_resolved = false
		`, symbolMisses},
		{"file-unresolved", `
			UNWIND $edges AS e
			MATCH (caller:File {repo: $repo, path: e.caller_path})
			MERGE (u:UnresolvedSymbol {name: e.callee_name, repo: $repo})
			MERGE (caller)-[r:CALLS {line_number: e.line_number}]->(u)
			SET r.args = e.args, r.full_call_name = e.full_call_name, r.is_resolved = false
		`, fileMisses},
	}

	for _, g := range groups {
		if err := w.runEdgeBatches(ctx, repo, g.query, g.items); err != nil {
			return fmt.Errorf("upsert %s edges: %w", g.name, err)
		}
	}
	return nil
}

// BatchUpsertInheritance writes INHERITS edges, plus IMPLEMENTS when the
// resolved parent is an Interface rather than a class-like node.
func (w *Writer) BatchUpsertInheritance(ctx context.Context, repo string, edges []InheritEdge) error {
	items := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		items = append(items, map[string]any{
			"child_name":  e.ChildName,
			"child_path":  e.ChildPath,
			"parent_name": e.ParentName,
			"parent_path": e.ParentPath,
		})
	}

	inherits := `
		UNWIND $edges AS e
		MATCH (child)
		WHERE (child:Class OR child:Struct OR child:Trait OR child:Interface)
		  AND child.name = e.child_name AND child.repo = $repo AND child.path = e.child_path
		MATCH (parent)
		WHERE (parent:Class OR parent:Struct OR parent:Trait)
		  AND parent.name = e.parent_name AND parent.repo = $repo AND parent.path = e.parent_path
		MERGE (child)-[:INHERITS]->(parent)
	`
	if err := w.runEdgeBatches(ctx, repo, inherits, items); err != nil {
		return fmt.Errorf("upsert INHERITS edges: %w", err)
	}

	implements := `
		UNWIND $edges AS e
		MATCH (child)
		WHERE (child:Class OR child:Struct OR child:Record)
		  AND child.name = e.child_name AND child.repo = $repo AND child.path = e.child_path
		MATCH (iface:Interface {name: e.parent_name, repo: $repo, path: e.parent_path})
		MERGE (child)-[:IMPLEMENTS]->(iface)
	`
	if err := w.runEdgeBatches(ctx, repo, implements, items); err != nil {
		return fmt.Errorf("upsert IMPLEMENTS edges: %w", err)
	}
	return nil
}

func (w *Writer) runEdgeBatches(ctx context.Context, repo, query string, items []map[string]any) error {
	for start := 0; start < len(items); start += edgeBatchSize {
		end := start + edgeBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		err := w.client.WriteTx(ctx, func(tx neo4j.ManagedTransaction) error {
			_, runErr := tx.Run(ctx, query, map[string]any{"repo": repo, "edges": batch})
			return runErr
		})
		if err != nil {
			return err
		}
	}
	return nil
}
