// Package main removes the retired backend's residue from the hosted
// database and storage bucket. Dry-run by default; pass -apply to delete.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/miyannishar/creators-nepal-v2/internal/supabase"
)

const legacyMarkerColumn = "legacy_source"

func main() {
	var (
		envFile  = flag.String("env", ".env", "Path to .env with SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		tables   = flag.String("tables", "legacy_posts,legacy_profiles,legacy_payments", "Comma-separated legacy tables to purge")
		marker   = flag.String("marker", "", "Only delete rows whose "+legacyMarkerColumn+" equals this value; empty deletes all rows")
		bucket   = flag.String("bucket", "post-media", "Storage bucket holding legacy objects")
		prefix   = flag.String("prefix", "legacy/", "Object prefix to empty inside the bucket")
		apply    = flag.Bool("apply", false, "Actually delete; default is a dry run")
		pageSize = flag.Int("page-size", 100, "Objects listed per storage page")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load env (%s): %v", *envFile, err)
	}

	url := os.Getenv("SUPABASE_URL")
	key := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if url == "" || key == "" {
		log.Fatal("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required")
	}

	client, err := supabase.NewResilient(supabase.Config{URL: url, APIKey: key},
		supabase.DefaultRetryConfig(), supabase.DefaultCircuitBreakerConfig())
	if err != nil {
		log.Fatalf("supabase client: %v", err)
	}

	ctx := context.Background()
	mode := "DRY RUN"
	if *apply {
		mode = "APPLY"
	}
	fmt.Printf("legacy cleanup (%s)\n", mode)

	var rowsDeleted, objectsDeleted int

	for _, table := range strings.Split(*tables, ",") {
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		n, err := purgeTable(ctx, client, table, *marker, *apply)
		if err != nil {
			log.Fatalf("purge table %s: %v", table, err)
		}
		fmt.Printf("  table %-24s %d rows\n", table, n)
		rowsDeleted += n
	}

	n, err := purgeBucket(ctx, client, *bucket, *prefix, *pageSize, *apply)
	if err != nil {
		log.Fatalf("purge bucket %s: %v", *bucket, err)
	}
	fmt.Printf("  bucket %s prefix %-12s %d objects\n", *bucket, *prefix, n)
	objectsDeleted += n

	fmt.Printf("done: %d rows, %d objects", rowsDeleted, objectsDeleted)
	if !*apply {
		fmt.Printf(" (nothing deleted; re-run with -apply)")
	}
	fmt.Println()
}

// purgeTable counts matching rows and deletes them when apply is set.
func purgeTable(ctx context.Context, client *supabase.Client, table, marker string, apply bool) (int, error) {
	count := client.From(table).Select("id").Count("exact").Limit(1)
	if marker != "" {
		count.Eq(legacyMarkerColumn, marker)
	}
	resp, err := count.Execute(ctx)
	if err != nil {
		return 0, err
	}
	if err := resp.Error(); err != nil {
		return 0, err
	}

	total := parseContentRangeTotal(resp.Headers.Get("Content-Range"))
	if !apply || total == 0 {
		return total, nil
	}

	del := client.From(table)
	if marker != "" {
		del.Eq(legacyMarkerColumn, marker)
	} else {
		// PostgREST refuses unfiltered deletes; match every row explicitly.
		del.Neq("id", "")
	}
	resp, err = del.ExecuteDelete(ctx)
	if err != nil {
		return 0, err
	}
	if err := resp.Error(); err != nil {
		return 0, err
	}
	return total, nil
}

// purgeBucket lists objects under prefix page by page and removes them when
// apply is set.
func purgeBucket(ctx context.Context, client *supabase.Client, bucket, prefix string, pageSize int, apply bool) (int, error) {
	b := client.Storage().From(bucket)

	var removed int
	offset := 0
	for {
		objects, err := b.List(ctx, prefix, pageSize, offset)
		if err != nil {
			return removed, err
		}
		if len(objects) == 0 {
			return removed, nil
		}

		paths := make([]string, 0, len(objects))
		for _, obj := range objects {
			paths = append(paths, strings.TrimSuffix(prefix, "/")+"/"+obj.Name)
		}

		if apply {
			resp, err := b.Remove(ctx, paths)
			if err != nil {
				return removed, err
			}
			if err := resp.Error(); err != nil {
				return removed, err
			}
			removed += len(paths)
			// Removal shrinks the listing, so stay at offset zero.
			continue
		}

		removed += len(paths)
		offset += len(objects)
	}
}

// parseContentRangeTotal extracts the total from a PostgREST Content-Range
// header, e.g. "0-0/42".
func parseContentRangeTotal(header string) int {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return 0
	}
	var total int
	if _, err := fmt.Sscanf(header[idx+1:], "%d", &total); err != nil {
		return 0
	}
	return total
}
