// Command seed loads demo rows into the Supabase project so a fresh
// environment has something to browse. It uses the same service-role
// credentials as the server and is safe to re-run: rows carry fixed ids and
// upsert on conflict.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type seedSet struct {
	Table string
	Rows  []map[string]interface{}
}

func main() {
	var (
		envFile = flag.String("env", ".env", "Path to .env with SUPABASE_URL and SUPABASE_SERVICE_KEY")
		timeout = flag.Duration("timeout", 30*time.Second, "Per-table request timeout")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("load env (%s): %v, falling back to process env", *envFile, err)
	}

	baseURL := os.Getenv("SUPABASE_URL")
	serviceKey := os.Getenv("SUPABASE_SERVICE_KEY")
	if baseURL == "" || serviceKey == "" {
		log.Fatal("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	client := &http.Client{Timeout: *timeout}
	ctx := context.Background()

	for _, set := range fixtures() {
		if err := upsert(ctx, client, baseURL, serviceKey, set); err != nil {
			log.Fatalf("seed %s: %v", set.Table, err)
		}
		fmt.Printf("seeded %s (%d rows)\n", set.Table, len(set.Rows))
	}
}

func upsert(ctx context.Context, client *http.Client, baseURL, serviceKey string, set seedSet) error {
	body, err := json.Marshal(set.Rows)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/rest/v1/"+set.Table+"?on_conflict=id", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("apikey", serviceKey)
	req.Header.Set("Authorization", "Bearer "+serviceKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var msg bytes.Buffer
		_, _ = msg.ReadFrom(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg.String())
	}
	return nil
}

func fixtures() []seedSet {
	now := time.Now().UTC().Format(time.RFC3339)
	return []seedSet{
		{
			Table: "apps",
			Rows: []map[string]interface{}{
				{
					"id": "00000000-0000-4000-8000-000000000101", "name": "NamTaxi",
					"description": "Ride hailing for Windhoek", "category": "transport",
					"developer_id": "00000000-0000-4000-8000-000000000001",
					"status":       "approved", "downloads": 1240, "created_at": now, "updated_at": now,
				},
				{
					"id": "00000000-0000-4000-8000-000000000102", "name": "Kapana Finder",
					"description": "Street food near you", "category": "food",
					"developer_id": "00000000-0000-4000-8000-000000000001",
					"status":       "pending", "downloads": 0, "created_at": now, "updated_at": now,
				},
			},
		},
		{
			Table: "products",
			Rows: []map[string]interface{}{
				{
					"id": "00000000-0000-4000-8000-000000000201", "name": "Swakara Wool Scarf",
					"description": "Hand woven", "price": 450, "status": "active",
					"created_at": now, "updated_at": now,
				},
				{
					"id": "00000000-0000-4000-8000-000000000202", "name": "Omajova Dried Mushrooms",
					"description": "250g pack", "price": 120, "status": "active",
					"created_at": now, "updated_at": now,
				},
			},
		},
		{
			Table: "driving_school_packages",
			Rows: []map[string]interface{}{
				{
					"id": "00000000-0000-4000-8000-000000000301", "name": "Learner Starter",
					"description": "10 lessons, code 8", "price": 2500, "lessons": 10,
					"created_at": now,
				},
				{
					"id": "00000000-0000-4000-8000-000000000302", "name": "Full Licence",
					"description": "20 lessons plus test booking", "price": 4800, "lessons": 20,
					"created_at": now,
				},
			},
		},
	}
}
