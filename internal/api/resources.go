package api

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/bank"
	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// Collection is the CRUD contract of one backend collection.
type Collection[T any] interface {
	GetAll(ctx context.Context) ([]T, error)
	GetOne(ctx context.Context, key string) (*T, error)
	GetByFilter(ctx context.Context, field, value string) ([]T, error)
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, record T) (*T, error)
	Delete(ctx context.Context, id string) (*T, error)
}

// Resources groups the passthrough collections.
type Resources struct {
	Products     Collection[model.Product]
	Customers    Collection[model.Customer]
	Purchases    Collection[model.Purchase]
	Transactions Collection[model.Transaction]
}

// ResourcesFrom exposes a backend client's collections.
func ResourcesFrom(c *bank.Client) Resources {
	return Resources{
		Products:     c.Products,
		Customers:    c.Customers,
		Purchases:    c.Purchases,
		Transactions: c.Transactions,
	}
}

// registerResources mounts list, get, create, update and delete routes for
// every collection. /customers/type must precede /customers/:docNumber.
func registerResources(r fiber.Router, logger *zap.Logger, res Resources) {
	products := passthrough[model.Product]{logger: logger, name: bank.CollectionProducts, coll: res.Products}
	r.Get("/products", products.list)
	r.Get("/products/:category", products.get("category"))
	r.Post("/products", products.create)
	r.Put("/products", products.update)
	r.Delete("/products/:id", products.remove)

	customers := passthrough[model.Customer]{logger: logger, name: bank.CollectionCustomers, coll: res.Customers}
	r.Get("/customers", customers.list)
	r.Get("/customers/type", customers.byType)
	r.Get("/customers/:docNumber", customers.get("docNumber"))
	r.Post("/customers", customers.create)
	r.Put("/customers", customers.update)
	r.Delete("/customers/:id", customers.remove)

	purchases := passthrough[model.Purchase]{logger: logger, name: bank.CollectionPurchases, coll: res.Purchases}
	r.Get("/purchases", purchases.list)
	r.Get("/purchases/:id", purchases.get("id"))
	r.Post("/purchases", purchases.create)
	r.Put("/purchases", purchases.update)
	r.Delete("/purchases/:id", purchases.remove)

	transactions := passthrough[model.Transaction]{logger: logger, name: bank.CollectionTransactions, coll: res.Transactions}
	r.Get("/transactions", transactions.list)
	r.Get("/transactions/:id", transactions.get("id"))
	r.Post("/transactions", transactions.create)
	r.Put("/transactions", transactions.update)
	r.Delete("/transactions/:id", transactions.remove)
}

type passthrough[T any] struct {
	logger *zap.Logger
	name   string
	coll   Collection[T]
}

func (p passthrough[T]) fail(c *fiber.Ctx, action string, err error) error {
	p.logger.Warn("api."+p.name+"."+action+".failed", zap.Error(err))
	return writeError(c, err)
}

func (p passthrough[T]) list(c *fiber.Ctx) error {
	all, err := p.coll.GetAll(c.Context())
	if err != nil {
		return p.fail(c, "list", err)
	}
	if all == nil {
		all = []T{}
	}
	return c.JSON(all)
}

// byType lists customers of the requested type; an empty type lists all.
func (p passthrough[T]) byType(c *fiber.Ctx) error {
	customerType := c.Query("type")
	if customerType == "" {
		return p.list(c)
	}
	matches, err := p.coll.GetByFilter(c.Context(), bank.FilterCustomerType, customerType)
	if err != nil {
		return p.fail(c, "by_type", err)
	}
	return c.JSON(matches)
}

func (p passthrough[T]) get(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Params(param)
		rec, err := p.coll.GetOne(c.Context(), key)
		if err != nil {
			return p.fail(c, "get", err)
		}
		if rec == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": fmt.Sprintf("%s %q not found", p.name, key)})
		}
		return c.JSON(rec)
	}
}

func (p passthrough[T]) create(c *fiber.Ctx) error {
	var rec T
	if err := c.BodyParser(&rec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	created, err := p.coll.Create(c.Context(), rec)
	if err != nil {
		return p.fail(c, "create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (p passthrough[T]) update(c *fiber.Ctx) error {
	var rec T
	if err := c.BodyParser(&rec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	updated, err := p.coll.Update(c.Context(), rec)
	if err != nil {
		return p.fail(c, "update", err)
	}
	if updated == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": p.name + " not found"})
	}
	return c.JSON(updated)
}

func (p passthrough[T]) remove(c *fiber.Ctx) error {
	id := c.Params("id")
	deleted, err := p.coll.Delete(c.Context(), id)
	if err != nil {
		return p.fail(c, "delete", err)
	}
	if deleted == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": fmt.Sprintf("%s %q not found", p.name, id)})
	}
	return c.JSON(deleted)
}
