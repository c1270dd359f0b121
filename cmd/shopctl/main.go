// Command shopctl runs operator tasks against the production database:
// schema migrations, stock reports and manual stock or user changes.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"honnylove-backend/internal/auth"
	"honnylove-backend/internal/commerce"
	"honnylove-backend/internal/config"
	"honnylove-backend/internal/inventory"
	"honnylove-backend/internal/stores/postgres"
	"honnylove-backend/internal/users"
)

const usage = `usage:
  shopctl migrate up|down|status
  shopctl stock low
  shopctl stock adjust -product ID [-location ID] -delta N [-reason TEXT]
  shopctl user add -email EMAIL -name NAME -password PASSWORD [-role customer|manager|admin]`

// operator is the actor recorded for changes made from the command line.
var operator = commerce.Actor{Staff: true}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(context.Background(), os.Args[1], os.Args[2], os.Args[3:]); err != nil {
		log.Fatalf("shopctl: %v", err)
	}
}

func run(ctx context.Context, group, cmd string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := postgres.OpenDB(ctx, cfg.DatabaseURL, postgres.Options{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()

	if group == "migrate" {
		return postgres.Migrate(ctx, db, cmd)
	}
	svc, err := newService(db)
	if err != nil {
		return err
	}

	switch group + " " + cmd {
	case "stock low":
		records, err := svc.LowStock(ctx)
		if err != nil {
			return err
		}
		return printLowStock(os.Stdout, records)
	case "stock adjust":
		return adjustStock(ctx, svc, args)
	case "user add":
		return addUser(ctx, svc, args)
	}
	return fmt.Errorf("unknown command %q\n%s", group+" "+cmd, usage)
}

// newService builds a service without a payment gateway; none of the
// commands here reach it.
func newService(db *sql.DB) (*commerce.Service, error) {
	st, err := postgres.NewConf(db)
	if err != nil {
		return nil, err
	}
	return commerce.New(st, nil, nil), nil
}

func adjustStock(ctx context.Context, svc *commerce.Service, args []string) error {
	fs := flag.NewFlagSet("stock adjust", flag.ContinueOnError)
	product := fs.Int64("product", 0, "product id")
	location := fs.Int64("location", inventory.DefaultLocationID, "location id")
	delta := fs.Int("delta", 0, "signed quantity change")
	reason := fs.String("reason", "manual adjustment", "reason recorded in the log")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *product <= 0 {
		return errors.New("-product is required")
	}
	rec, err := svc.AdjustInventory(ctx, operator, *product, *location, *delta, *reason)
	if err != nil {
		return err
	}
	fmt.Printf("product %d at location %d: quantity %d\n", rec.ProductID, rec.LocationID, rec.Quantity)
	return nil
}

func addUser(ctx context.Context, svc *commerce.Service, args []string) error {
	fs := flag.NewFlagSet("user add", flag.ContinueOnError)
	email := fs.String("email", "", "login email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "initial password")
	role := fs.String("role", auth.RoleManager, "customer, manager or admin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u, err := svc.CreateUser(ctx, users.NewUser{Email: *email, Name: *name, Password: *password}, *role)
	if err != nil {
		return err
	}
	fmt.Printf("created user %d (%s, %s)\n", u.ID, u.Email, u.Role)
	return nil
}

func printLowStock(w io.Writer, records []inventory.Record) error {
	table := tablewriter.NewWriter(w)
	table.Header("Product", "Location", "Name", "Quantity", "Min stock")
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ProductID, 10),
			strconv.FormatInt(rec.LocationID, 10),
			rec.LocationName,
			strconv.Itoa(rec.Quantity),
			strconv.Itoa(rec.MinStock),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
