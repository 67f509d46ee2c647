package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/baskets"
	"github.com/angelmondragon/basketcase/internal/prices"
	pkgauth "github.com/angelmondragon/basketcase/pkg/auth"
	"github.com/angelmondragon/basketcase/pkg/enums"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/migrate"
)

const defaultSearchLimit = 10

func commands(rt *runtime) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "init",
			Usage: "create or upgrade the database schema",
			Action: func(c *cli.Context) error {
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				if err := migrate.Apply(c.Context, rt.logg, app.DB); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "initialize database")
				}
				fmt.Fprintln(c.App.Writer, "Database initialized successfully.")
				return nil
			},
		},
		{
			Name:      "find-stores",
			Usage:     "find stores near a postal code",
			ArgsUsage: "<postal_code>",
			Flags:     []cli.Flag{&cli.IntFlag{Name: "limit", Value: defaultSearchLimit}},
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 1); err != nil {
					return err
				}
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				svc, err := app.RequireCatalog()
				if err != nil {
					return err
				}
				stores, err := svc.FindNearbyStores(c.Context, c.Args().Get(0), c.Int("limit"))
				if err != nil {
					return err
				}
				renderStores(c.App.Writer, stores)
				return nil
			},
		},
		{
			Name:      "search-products",
			Usage:     "search the catalog of one store",
			ArgsUsage: "<term> <store_id>",
			Flags:     []cli.Flag{&cli.IntFlag{Name: "limit", Value: defaultSearchLimit}},
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 2); err != nil {
					return err
				}
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				svc, err := app.RequireCatalog()
				if err != nil {
					return err
				}
				products, err := svc.SearchProducts(c.Context, c.Args().Get(0), c.Args().Get(1), c.Int("limit"))
				if err != nil {
					return err
				}
				renderProducts(c.App.Writer, products)
				return nil
			},
		},
		{
			Name:      "create-basket",
			Usage:     "create a basket bound to one store",
			ArgsUsage: "<name> <store_id>",
			Flags:     []cli.Flag{&cli.BoolFlag{Name: "template", Usage: "mark the basket as a reusable template"}},
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 2); err != nil {
					return err
				}
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				basket, err := app.Baskets.Create(c.Context, baskets.CreateInput{
					Name:       c.Args().Get(0),
					StoreID:    c.Args().Get(1),
					IsTemplate: c.Bool("template"),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "\nCreated basket: %s (ID: %s)\n", basket.Name, basket.ID)
				return nil
			},
		},
		{
			Name:  "list-baskets",
			Usage: "list baskets, optionally for one store",
			Flags: []cli.Flag{&cli.StringFlag{Name: "store"}},
			Action: func(c *cli.Context) error {
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				list, err := app.Baskets.List(c.Context, c.String("store"))
				if err != nil {
					return err
				}
				renderBaskets(c.App.Writer, list)
				return nil
			},
		},
		{
			Name:      "add-to-basket",
			Usage:     "add a product to a basket, seeding its price history when empty",
			ArgsUsage: "<basket_id> <product_id> [quantity]",
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 2); err != nil {
					return err
				}
				basketID, err := parseID(c.Args().Get(0), "basket_id")
				if err != nil {
					return err
				}
				quantity := 1
				if raw := c.Args().Get(2); raw != "" {
					quantity, err = strconv.Atoi(raw)
					if err != nil {
						return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a whole number")
					}
				}
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				input := baskets.AddItemInput{BasketID: basketID, ProductID: c.Args().Get(1), Quantity: quantity}

				if app.Catalog == nil {
					item, err := app.Baskets.AddItem(c.Context, input)
					if err != nil {
						return err
					}
					renderAddedItem(c.App.Writer, item, nil)
					return nil
				}
				result, err := app.Catalog.TrackProduct(c.Context, input)
				if err != nil {
					return err
				}
				renderAddedItem(c.App.Writer, result.Item, result.Seeded)
				return nil
			},
		},
		{
			Name:      "clone-basket",
			Usage:     "copy a basket's items into a new basket",
			ArgsUsage: "<basket_id> <new_name>",
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 2); err != nil {
					return err
				}
				sourceID, err := parseID(c.Args().Get(0), "basket_id")
				if err != nil {
					return err
				}
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				clone, copied, err := app.Baskets.Clone(c.Context, baskets.CloneInput{SourceID: sourceID, Name: c.Args().Get(1)})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "\nCloned basket:\nOriginal ID: %s\nNew ID: %s\nNew Name: %s\nItems copied: %d\n",
					sourceID, clone.ID, clone.Name, copied)
				return nil
			},
		},
		{
			Name:      "delete-basket",
			Usage:     "delete a basket with its items and indices",
			ArgsUsage: "<basket_id>",
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 1); err != nil {
					return err
				}
				id, err := parseID(c.Args().Get(0), "basket_id")
				if err != nil {
					return err
				}
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				if err := app.Baskets.Delete(c.Context, id); err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Deleted basket %s\n", id)
				return nil
			},
		},
		{
			Name:      "calculate-inflation",
			Usage:     "recalculate and print a basket's inflation index",
			ArgsUsage: "<basket_id>",
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 1); err != nil {
					return err
				}
				id, err := parseID(c.Args().Get(0), "basket_id")
				if err != nil {
					return err
				}
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				if _, err := app.Inflation.Calculate(c.Context, id); err != nil {
					return err
				}
				// the stored report carries category names
				report, err := app.Inflation.Report(c.Context, id)
				if err != nil {
					return err
				}
				detail, err := app.Baskets.Get(c.Context, id)
				if err != nil {
					return err
				}
				renderInflation(c.App.Writer, detail.Basket.Name, report)
				return nil
			},
		},
		{
			Name:      "price-history",
			Usage:     "print the recorded prices of a product at a store",
			ArgsUsage: "<product_id> <store_id>",
			Flags: []cli.Flag{
				&cli.TimestampFlag{Name: "from", Layout: time.DateOnly},
				&cli.TimestampFlag{Name: "to", Layout: time.DateOnly},
			},
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 2); err != nil {
					return err
				}
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				var rng prices.TimeRange
				if from := c.Timestamp("from"); from != nil {
					rng.From = *from
				}
				if to := c.Timestamp("to"); to != nil {
					rng.To = to.Add(24*time.Hour - time.Nanosecond)
				}
				points, err := app.Prices.Query(c.Context, c.Args().Get(0), c.Args().Get(1), rng)
				if err != nil {
					return err
				}
				renderPrices(c.App.Writer, points)
				return nil
			},
		},
		{
			Name:  "refresh-prices",
			Usage: "fetch current prices for every tracked product now",
			Action: func(c *cli.Context) error {
				app, err := rt.services(c.Context)
				if err != nil {
					return err
				}
				svc, err := app.RequireRefresh()
				if err != nil {
					return err
				}
				summary, err := svc.Run(c.Context)
				if summary != nil {
					renderSummary(c.App.Writer, summary)
				}
				return err
			},
		},
		{
			Name:  "errors",
			Usage: "inspect the error log",
			Subcommands: []*cli.Command{
				{
					Name:  "list",
					Usage: "list error log entries, newest first",
					Flags: []cli.Flag{
						&cli.BoolFlag{Name: "all", Usage: "include resolved entries"},
						&cli.StringFlag{Name: "component", Usage: "SCHEDULER, CALCULATOR, CATALOG, CLI or API"},
						&cli.IntFlag{Name: "limit", Value: 20},
						&cli.StringFlag{Name: "cursor"},
					},
					Action: func(c *cli.Context) error {
						app, err := rt.services(c.Context)
						if err != nil {
							return err
						}
						result, err := app.Audit.List(c.Context, audit.ListParams{
							Limit:           c.Int("limit"),
							Cursor:          c.String("cursor"),
							IncludeResolved: c.Bool("all"),
							Component:       c.String("component"),
						})
						if err != nil {
							return err
						}
						renderErrors(c.App.Writer, result)
						return nil
					},
				},
				{
					Name:      "resolve",
					Usage:     "mark an error log entry as handled",
					ArgsUsage: "<error_id>",
					Action: func(c *cli.Context) error {
						if err := requireArgs(c, 1); err != nil {
							return err
						}
						id, err := parseID(c.Args().Get(0), "error_id")
						if err != nil {
							return err
						}
						app, err := rt.services(c.Context)
						if err != nil {
							return err
						}
						if err := app.Audit.Resolve(c.Context, id); err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "Resolved %s\n", id)
						return nil
					},
				},
			},
		},
		{
			Name:  "admin-token",
			Usage: "mint a bearer token for the admin API",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "operator", Required: true},
				&cli.StringFlag{Name: "role", Value: string(enums.OperatorRoleViewer), Usage: "viewer or admin"},
			},
			Action: func(c *cli.Context) error {
				cfg, err := rt.config()
				if err != nil {
					return err
				}
				role, err := enums.ParseOperatorRole(strings.ToLower(c.String("role")))
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
				}
				token, err := pkgauth.MintAdminToken(cfg.API, time.Now(), pkgauth.AdminTokenPayload{
					Operator: c.String("operator"),
					Role:     role,
				})
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "mint admin token")
				}
				fmt.Fprintln(c.App.Writer, token)
				return nil
			},
		},
	}
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("usage: basketcase %s %s", c.Command.Name, c.Command.ArgsUsage))
	}
	return nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be a UUID")
	}
	return id, nil
}
