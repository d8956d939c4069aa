package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	var tenantID string
	err = db.QueryRow(`
		INSERT INTO tenants (name, slug) VALUES ('Default Store', 'default')
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id;
	`).Scan(&tenantID)
	if err != nil {
		log.Fatalf("Failed to retrieve or create default tenant: %v", err)
	}
	log.Printf("Using Tenant ID: %s", tenantID)

	seedSettings(db, tenantID, os.Getenv("SEED_PRICE_INCLUDES_TAX") == "true")
	seedProducts(db, tenantID)

	log.Println("Seeding completed successfully!")
}

func seedSettings(db *sql.DB, tenantID string, inclusive bool) {
	fmt.Println("Seeding Store Settings...")
	_, err := db.Exec(`
		INSERT INTO store_settings (tenant_id, store_name, currency_code, price_includes_tax)
		VALUES ($1, 'Warung Default', 'IDR', $2)
		ON CONFLICT (tenant_id) DO NOTHING;
	`, tenantID, inclusive)
	if err != nil {
		log.Printf("Failed to seed settings: %v", err)
	}
}

func seedProducts(db *sql.DB, tenantID string) {
	products := []struct {
		Name    string
		SKU     string
		Price   string
		TaxRate string
		Stock   int
	}{
		{"Nasi Goreng Spesial", "FOOD-001", "50000", "10", 100},
		{"Mie Ayam Bakso", "FOOD-002", "35000", "10", 100},
		{"Sate Ayam 10 Tusuk", "FOOD-003", "40000", "10", 80},
		{"Gado-Gado", "FOOD-004", "28000", "10", 60},
		{"Es Teh Manis", "DRINK-001", "30000", "0", 300},
		{"Kopi Susu Gula Aren", "DRINK-002", "25000", "11", 200},
		{"Air Mineral 600ml", "DRINK-003", "5000", "0", 500},
		{"Kerupuk Udang", "SNACK-001", "7500", "11", 250},
		{"Pisang Goreng", "SNACK-002", "15000", "11", 120},
		{"Beras Premium 5kg", "STOCK-001", "78500", "0", 40},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		_, err := db.Exec(`
			INSERT INTO products (tenant_id, name, sku, price, tax_rate, stock)
			SELECT $1, $2, $3, $4::numeric, $5::numeric, $6
			WHERE NOT EXISTS (SELECT 1 FROM products WHERE tenant_id = $1 AND sku = $3);
		`, tenantID, p.Name, p.SKU, p.Price, p.TaxRate, p.Stock)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.SKU, err)
		}
	}
}
