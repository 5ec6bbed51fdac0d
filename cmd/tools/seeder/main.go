package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

type seedProject struct {
	ID          string
	Name        string
	Description string
	Price       string
}

// Prices are decimal strings so NUMERIC(12,2) receives them exactly.
var projects = []seedProject{
	{"landing-page-pro", "Landing Page Pro", "Template de landing page responsiva com Next.js e Tailwind.", "49.90"},
	{"dashboard-admin", "Dashboard Admin", "Painel administrativo com gráficos, tabelas e autenticação.", "129.00"},
	{"ecommerce-starter", "E-commerce Starter", "Loja virtual com carrinho, checkout e painel de pedidos.", "349.90"},
	{"portfolio-minimal", "Portfólio Minimalista", "Portfólio de página única para desenvolvedores.", "0.00"},
	{"saas-boilerplate", "SaaS Boilerplate", "Base para SaaS com planos, assinaturas e multi-tenant.", "999999.99"},
	{"enterprise-suite", "Enterprise Suite", "Licença corporativa acima do limite do processador.", "1000000.00"},
}

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

	seeded, err := seedProjects(db, projects)
	if err != nil {
		log.Fatalf("Failed to seed projects: %v", err)
	}
	log.Printf("Seeding completed: %d projects", seeded)
}

func seedProjects(db *sql.DB, items []seedProject) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO projects (id, name, description, price)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    price = EXCLUDED.price,
		    updated_at = now();
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	fmt.Println("Seeding Projects...")
	for _, p := range items {
		if _, err := stmt.Exec(p.ID, p.Name, p.Description, p.Price); err != nil {
			return 0, fmt.Errorf("upsert project %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(items), nil
}
