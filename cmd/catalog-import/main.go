package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/EmpoweredVote/gestion-map/internal/catalog"
	"github.com/EmpoweredVote/gestion-map/internal/db"
	"github.com/EmpoweredVote/gestion-map/internal/textnorm"
)

// CLI flags
var (
	csvPath     = flag.String("csv", "", "Path to the catalog CSV (required)")
	dsn         = flag.String("dsn", "", "Postgres DSN (default: env DATABASE_URL)")
	deptTable   = flag.String("departments-table", "departamentos", "Departments table")
	muniTable   = flag.String("municipios-table", "municipios", "Municipios table")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	confirm     = flag.Bool("confirm", false, "Required to perform destructive replace")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key (e.g., 424242). 0 = disabled")
)

// CSV contract
// departamento,municipio,lat,lng[,tipo]
// "lugar" is accepted for municipio, "lon" for lng.

type Counts struct {
	Departments int64
	Municipios  int64
}

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *csvPath == "" {
		fatalf("--csv is required")
	}
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		fatalf("CSV error: %v", err)
	}
	entries, err := catalog.ReadCSV(f)
	f.Close()
	if err != nil {
		fatalf("CSV error: %v", err)
	}

	// Build drops bad coordinates and duplicate keys, same as the server.
	idx := catalog.Build(entries)
	fmt.Printf("Loaded %d rows from %s\n", len(entries), *csvPath)

	if *dryRun {
		printPlan(idx)
		fmt.Println("Dry run complete. No changes made.")
		return
	}

	if !*confirm {
		fatalf("Refusing to run without --confirm. Add --dry-run to preview.")
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conn, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op if already committed
	}()

	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	if err := db.EnsureCatalogTables(ctx, tx, *deptTable, *muniTable); err != nil {
		fatalf("ensure tables: %v", err)
	}

	before, err := countAll(ctx, tx)
	if err != nil {
		fatalf("pre-count: %v", err)
	}
	fmt.Printf("Before: departamentos=%d municipios=%d\n", before.Departments, before.Municipios)

	// Municipios are replaced; departamentos are upserted since other tables
	// may reference them.
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+db.Ident(*muniTable)); err != nil {
		fatalf("wipe municipios: %v", err)
	}

	deptIDs, err := upsertDepartments(ctx, tx, idx)
	if err != nil {
		fatalf("upsert departamentos: %v", err)
	}
	fmt.Printf("Upserted %d departamentos\n", len(deptIDs))

	if err := insertMunicipios(ctx, tx, idx, deptIDs); err != nil {
		fatalf("insert municipios: %v", err)
	}

	after, err := countAll(ctx, tx)
	if err != nil {
		fatalf("post-count: %v", err)
	}
	fmt.Printf("After:  departamentos=%d municipios=%d\n", after.Departments, after.Municipios)

	if after.Municipios != int64(idx.Len()) {
		fatalf("sanity check failed: municipios=%d expected=%d", after.Municipios, idx.Len())
	}

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Println("Import complete ✅")
}

func printPlan(idx *catalog.Index) {
	st := idx.Stats()
	fmt.Println("Plan preview:")
	fmt.Printf("  Municipios to insert: %d\n", st.Indexed)
	fmt.Printf("  Departamentos: %d\n", len(idx.Departments()))
	fmt.Printf("  Skipped duplicates: %d\n", st.Duplicates)
	fmt.Printf("  Skipped without coordinates: %d\n", st.Excluded)
	fmt.Printf("  Tables affected (destructive): %s\n", *muniTable)
}

func countAll(ctx context.Context, tx *sql.Tx) (Counts, error) {
	var c Counts
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM `+db.Ident(*deptTable)).Scan(&c.Departments); err != nil {
		return c, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM `+db.Ident(*muniTable)).Scan(&c.Municipios); err != nil {
		return c, err
	}
	return c, nil
}

// upsertDepartments returns the id of every department, by normalized name.
func upsertDepartments(ctx context.Context, tx *sql.Tx, idx *catalog.Index) (map[string]int64, error) {
	q := `INSERT INTO ` + db.Ident(*deptTable) + ` (departamento) VALUES ($1)
		ON CONFLICT (departamento) DO UPDATE SET departamento = EXCLUDED.departamento
		RETURNING id`

	ids := make(map[string]int64)
	for _, name := range idx.Departments() {
		var id int64
		if err := tx.QueryRowContext(ctx, q, name).Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		ids[textnorm.Normalize(name)] = id
	}
	return ids, nil
}

func insertMunicipios(ctx context.Context, tx *sql.Tx, idx *catalog.Index, deptIDs map[string]int64) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+db.Ident(*muniTable)+
		` (lugar, lat, lng, tipo, departamento_id) VALUES ($1, $2, $3, NULLIF($4, ''), $5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range idx.Entries() {
		deptID, ok := deptIDs[textnorm.Normalize(e.Department)]
		if !ok {
			return fmt.Errorf("no id for departamento %q", e.Department)
		}
		if _, err := stmt.ExecContext(ctx, e.Municipio, e.Lat, e.Lng, e.Type, deptID); err != nil {
			return fmt.Errorf("%s, %s: %w", e.Municipio, e.Department, err)
		}
	}
	return nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
