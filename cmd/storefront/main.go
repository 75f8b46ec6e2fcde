// Command storefront is the terminal client for the art gallery shop. It
// keeps the cart, wishlist, session, and browsing history on disk between
// invocations and talks to the remote storefront API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/arthaus/storefront/internal/api"
	"github.com/arthaus/storefront/internal/domain"
	"github.com/arthaus/storefront/internal/platform/config"
	"github.com/arthaus/storefront/internal/platform/localstore"
	"github.com/arthaus/storefront/internal/platform/observability"
	"github.com/arthaus/storefront/internal/state"
)

const usage = `Usage: storefront <command> [arguments]

Account:
  login <email> <password>         sign in
  register <email> <password> [first] [last]
  logout                           sign out
  whoami                           show the current profile

Catalogue:
  products [-page N] [-size N] [-sort field] [-filter featured|bestsellers|new-arrivals|flash-sale]
  product <id|slug>                show one artwork
  search <term>                    free-text search

Cart:
  cart                             list the cart
  cart add <productID> [-size s] [-frame f]
  cart remove <lineKey>
  cart qty <lineKey> <quantity>
  cart clear
  cart checkout -name n -address a -city c -postal p [-country France] [-email e]

Wishlist:
  wishlist                         list favorites
  wishlist add <productID>
  wishlist remove <productID>
  wishlist toggle <productID>

History and orders:
  recent [clear]                   recently viewed artworks
  orders                           order history
  order <id|number>                show one order
  reviews <productID>              list reviews
  review <productID> <rating> [title] [body]
`

type app struct {
	cfg      config.Config
	logger   *zap.Logger
	client   *api.Client
	session  *state.Session
	cart     *state.Cart
	wishlist *state.Wishlist
	recent   *state.RecentlyViewed
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("storefront")

	a, err := newApp(logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}

	ctx := observability.WithLogger(context.Background(), logger)
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if api.IsTemporary(err) {
			fmt.Fprintf(os.Stderr, "storefront: the gallery is unreachable, please retry: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		}
		os.Exit(1)
	}
}

func newApp(logger *zap.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := localstore.NewFileStore(cfg.State.Dir)
	if err != nil {
		return nil, err
	}

	var session *state.Session
	client, err := api.New(api.Options{
		BaseURL: cfg.API.BaseURL,
		HTTPClient: &http.Client{
			Timeout: cfg.API.Timeout,
		},
		Token: func() (string, bool) {
			if session == nil {
				return "", false
			}
			return session.Token()
		},
		OnUnauthorized: func() {
			if session != nil {
				session.HandleUnauthorized()
			}
		},
		Logger:        logger.Named("api"),
		RetryAttempts: cfg.API.RetryAttempts,
		RetryInitial:  cfg.API.RetryInitial,
		RetryMax:      cfg.API.RetryMax,
	})
	if err != nil {
		return nil, err
	}

	session, err = state.NewSession(state.SessionDeps{Store: store, Client: client, Logger: logger.Named("session")})
	if err != nil {
		return nil, err
	}
	cart, err := state.NewCart(state.CartDeps{Store: store, Logger: logger.Named("cart")})
	if err != nil {
		return nil, err
	}
	wishlist, err := state.NewWishlist(state.WishlistDeps{Store: store, Client: client, Logger: logger.Named("wishlist")})
	if err != nil {
		return nil, err
	}
	recent, err := state.NewRecentlyViewed(state.RecentlyViewedDeps{Store: store, Logger: logger.Named("recent")})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		session:  session,
		cart:     cart,
		wishlist: wishlist,
		recent:   recent,
	}, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.cmdLogin(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "logout":
		return a.cmdLogout(ctx)
	case "whoami":
		return a.cmdWhoami(ctx)
	case "products":
		return a.cmdProducts(ctx, args)
	case "product":
		return a.cmdProduct(ctx, args)
	case "search":
		return a.cmdSearch(ctx, args)
	case "cart":
		return a.cmdCart(ctx, args)
	case "wishlist":
		return a.cmdWishlist(ctx, args)
	case "recent":
		return a.cmdRecent(args)
	case "orders":
		return a.cmdOrders(ctx)
	case "order":
		return a.cmdOrder(ctx, args)
	case "reviews":
		return a.cmdReviews(ctx, args)
	case "review":
		return a.cmdReview(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// restore recovers the persisted session before commands that depend on the
// authentication state. Transport failures are tolerated.
func (a *app) restore(ctx context.Context) {
	if err := a.session.Restore(ctx); err != nil {
		a.logger.Debug("session restore", zap.Error(err))
	}
	if a.session.State() == state.Authenticated {
		if err := a.wishlist.HandleAuthChange(ctx, true); err != nil {
			a.logger.Debug("wishlist sync", zap.Error(err))
		}
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <email> <password>")
	}
	if err := a.session.Login(ctx, args[0], args[1]); err != nil {
		return err
	}
	if err := a.wishlist.HandleAuthChange(ctx, true); err != nil {
		fmt.Println("Signed in; wishlist sync unavailable, showing cached favorites.")
	}
	if user, ok := a.session.User(); ok {
		fmt.Printf("Signed in as %s.\n", user.DisplayName())
	}
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: register <email> <password> [first] [last]")
	}
	in := api.RegisterInput{Email: args[0], Password: args[1]}
	if len(args) > 2 {
		in.FirstName = args[2]
	}
	if len(args) > 3 {
		in.LastName = args[3]
	}
	if err := a.session.Register(ctx, in); err != nil {
		if apiErr, ok := api.AsError(err); ok && apiErr.IsConflict() {
			return fmt.Errorf("an account already exists for %s", in.Email)
		}
		return err
	}
	if err := a.wishlist.HandleAuthChange(ctx, true); err != nil {
		a.logger.Debug("wishlist sync", zap.Error(err))
	}
	if user, ok := a.session.User(); ok {
		fmt.Printf("Welcome, %s.\n", user.DisplayName())
	}
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	a.restore(ctx)
	a.session.Logout()
	if err := a.wishlist.HandleAuthChange(ctx, false); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	a.restore(ctx)
	user, ok := a.session.User()
	if !ok {
		fmt.Println("Not signed in.")
		return nil
	}
	fmt.Printf("%s <%s>\n", user.DisplayName(), user.Email)
	if user.Address != "" {
		fmt.Printf("%s, %s %s, %s\n", user.Address, user.PostalCode, user.City, user.Country)
	}
	return nil
}

func (a *app) cmdProducts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 12, "page size")
	sort := fs.String("sort", "", "sort field")
	filter := fs.String("filter", "", "featured, bestsellers, new-arrivals, or flash-sale")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := api.ProductQuery{Page: *page, PageSize: *size, Sort: *sort}
	var (
		result api.ProductPage
		err    error
	)
	switch *filter {
	case "":
		result, err = a.client.Products(ctx, query)
	case "featured":
		result, err = a.client.Featured(ctx, query)
	case "bestsellers":
		result, err = a.client.Bestsellers(ctx, query)
	case "new-arrivals":
		result, err = a.client.NewArrivals(ctx, query)
	case "flash-sale":
		result, err = a.client.FlashSale(ctx, query)
	default:
		return fmt.Errorf("unknown filter %q", *filter)
	}
	if err != nil {
		return err
	}

	printProducts(result.Items)
	fmt.Printf("Page %d of %d (%d artworks)\n", result.Page, result.TotalPages, result.TotalItems)
	return nil
}

func (a *app) cmdProduct(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: product <id|slug>")
	}

	var (
		product domain.Product
		err     error
	)
	if id, convErr := strconv.ParseInt(args[0], 10, 64); convErr == nil {
		product, err = a.client.Product(ctx, id)
	} else {
		product, err = a.client.ProductBySlug(ctx, args[0])
	}
	if err != nil {
		return err
	}

	a.recent.Record(domain.RecentlyViewedEntry{
		ProductID:  strconv.FormatInt(product.ID, 10),
		Title:      product.Title,
		Artist:     product.Artist,
		Price:      domain.FormatPrice(product.Price),
		PriceValue: product.Price,
		Image:      product.Image,
	})

	fmt.Printf("%s — %s\n", product.Title, product.Artist)
	fmt.Printf("%s", domain.FormatPrice(product.Price))
	if product.OriginalPrice != nil {
		fmt.Printf(" (au lieu de %s)", domain.FormatPrice(*product.OriginalPrice))
	}
	fmt.Println()
	if product.Description != "" {
		fmt.Println(product.Description)
	}
	if !product.InStock {
		fmt.Println("Épuisé.")
	}

	related, err := a.client.Related(ctx, product.ID)
	if err == nil && len(related) > 0 {
		fmt.Println("\nDans le même esprit:")
		printProducts(related)
	}
	return nil
}

func (a *app) cmdSearch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: search <term>")
	}
	result, err := a.client.Search(ctx, strings.Join(args, " "), api.ProductQuery{})
	if err != nil {
		return err
	}
	if len(result.Items) == 0 {
		fmt.Println("No artworks found.")
		return nil
	}
	printProducts(result.Items)
	return nil
}

func (a *app) cmdCart(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		return a.printCart()
	}

	switch args[0] {
	case "add":
		return a.cmdCartAdd(ctx, args[1:])
	case "remove":
		if len(args) != 2 {
			return errors.New("usage: cart remove <lineKey>")
		}
		a.cart.Remove(args[1])
		return a.printCart()
	case "qty":
		if len(args) != 3 {
			return errors.New("usage: cart qty <lineKey> <quantity>")
		}
		qty, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("quantity must be numeric: %w", err)
		}
		a.cart.UpdateQuantity(args[1], qty)
		return a.printCart()
	case "clear":
		a.cart.Clear()
		fmt.Println("Cart cleared.")
		return nil
	case "checkout":
		return a.cmdCheckout(ctx, args[1:])
	default:
		return fmt.Errorf("unknown cart command %q", args[0])
	}
}

func (a *app) cmdCartAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cart add", flag.ContinueOnError)
	size := fs.String("size", "", "print size")
	frame := fs.String("frame", "", "frame finish")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: cart add <productID> [-size s] [-frame f]")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("product id must be numeric: %w", err)
	}

	product, err := a.client.Product(ctx, id)
	if err != nil {
		return err
	}

	line := a.cart.Add(domain.CartLine{
		ProductID:  product.ID,
		Title:      product.Title,
		Artist:     product.Artist,
		Price:      domain.FormatPrice(product.Price),
		PriceValue: product.Price,
		Image:      product.Image,
		Size:       *size,
		Frame:      *frame,
	})
	fmt.Printf("Added %s (line %s).\n", product.Title, line.Key)
	return a.printCart()
}

func (a *app) cmdCheckout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cart checkout", flag.ContinueOnError)
	name := fs.String("name", "", "recipient name")
	email := fs.String("email", "", "contact email")
	address := fs.String("address", "", "street address")
	city := fs.String("city", "", "city")
	postal := fs.String("postal", "", "postal code")
	country := fs.String("country", "France", "country")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *address == "" || *city == "" || *postal == "" {
		return errors.New("checkout needs -name, -address, -city, and -postal")
	}

	lines := a.cart.Lines()
	if len(lines) == 0 {
		return errors.New("the cart is empty")
	}

	a.restore(ctx)
	if a.session.State() != state.Authenticated {
		return errors.New("sign in before checking out")
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Title:     line.Title,
			Quantity:  line.Quantity,
			UnitPrice: line.PriceValue,
			Size:      line.Size,
			Frame:     line.Frame,
		})
	}

	order, err := a.client.CreateOrder(ctx, api.CreateOrderInput{
		Items:      items,
		Name:       *name,
		Email:      *email,
		Address:    *address,
		City:       *city,
		PostalCode: *postal,
		Country:    *country,
	})
	if err != nil {
		return err
	}

	a.cart.Clear()
	fmt.Printf("Order %s confirmed. Total %s.\n", order.Number, domain.FormatPrice(order.Total))
	return nil
}

func (a *app) cmdWishlist(ctx context.Context, args []string) error {
	a.restore(ctx)

	if len(args) == 0 || args[0] == "list" {
		return a.printWishlist()
	}

	switch args[0] {
	case "add", "remove", "toggle":
	default:
		return fmt.Errorf("unknown wishlist command %q", args[0])
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: wishlist %s <productID>", args[0])
	}

	switch args[0] {
	case "remove":
		if err := a.wishlist.Remove(ctx, args[1]); err != nil {
			return err
		}
	default:
		entry, err := a.wishlistEntry(ctx, args[1])
		if err != nil {
			return err
		}
		if args[0] == "add" {
			err = a.wishlist.Add(ctx, entry)
		} else {
			err = a.wishlist.Toggle(ctx, entry)
		}
		if err != nil {
			return err
		}
	}
	return a.printWishlist()
}

func (a *app) wishlistEntry(ctx context.Context, rawID string) (domain.WishlistEntry, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return domain.WishlistEntry{}, fmt.Errorf("product id must be numeric: %w", err)
	}
	product, err := a.client.Product(ctx, id)
	if err != nil {
		return domain.WishlistEntry{}, err
	}
	return domain.WishlistEntryFromProduct(product), nil
}

func (a *app) cmdRecent(args []string) error {
	if len(args) == 1 && args[0] == "clear" {
		a.recent.Clear()
		fmt.Println("History cleared.")
		return nil
	}

	entries := a.recent.Entries()
	if len(entries) == 0 {
		fmt.Println("No recently viewed artworks.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ProductID, e.Title, e.Artist, e.Price)
	}
	return w.Flush()
}

func (a *app) cmdOrders(ctx context.Context) error {
	a.restore(ctx)
	orders, err := a.client.MyOrders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("No orders yet.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Number, o.CreatedAt.Format("2006-01-02"), o.Status, domain.FormatPrice(o.Total))
	}
	return w.Flush()
}

func (a *app) cmdOrder(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: order <id|number>")
	}

	var (
		order domain.Order
		err   error
	)
	if id, convErr := strconv.ParseInt(args[0], 10, 64); convErr == nil {
		a.restore(ctx)
		order, err = a.client.Order(ctx, id)
	} else {
		order, err = a.client.OrderByNumber(ctx, args[0])
	}
	if err != nil {
		return err
	}

	fmt.Printf("Order %s (%s)\n", order.Number, order.Status)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, item := range order.Items {
		fmt.Fprintf(w, "%d× %s\t%s\n", item.Quantity, item.Title, domain.FormatPrice(item.UnitPrice))
	}
	fmt.Fprintf(w, "Sous-total\t%s\n", domain.FormatPrice(order.Subtotal))
	fmt.Fprintf(w, "Livraison\t%s\n", domain.FormatPrice(order.Shipping))
	fmt.Fprintf(w, "Total\t%s\n", domain.FormatPrice(order.Total))
	return w.Flush()
}

func (a *app) cmdReviews(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: reviews <productID>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("product id must be numeric: %w", err)
	}

	reviews, err := a.client.ProductReviews(ctx, id)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		fmt.Println("No reviews yet.")
		return nil
	}
	for _, r := range reviews {
		fmt.Printf("%s %s — %s\n", stars(r.Rating), r.Title, r.Author)
		if r.Body != "" {
			fmt.Println("  " + r.Body)
		}
	}
	return nil
}

func (a *app) cmdReview(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: review <productID> <rating> [title] [body]")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("product id must be numeric: %w", err)
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("rating must be numeric: %w", err)
	}

	a.restore(ctx)
	in := api.CreateReviewInput{ProductID: id, Rating: rating}
	if len(args) > 2 {
		in.Title = args[2]
	}
	if len(args) > 3 {
		in.Body = strings.Join(args[3:], " ")
	}

	review, err := a.client.CreateReview(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("Review %s published.\n", stars(review.Rating))
	return nil
}

func (a *app) printCart() error {
	lines := a.cart.Lines()
	if len(lines) == 0 {
		fmt.Println("The cart is empty.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, line := range lines {
		config := line.Size
		if line.Frame != "" {
			if config != "" {
				config += ", "
			}
			config += line.Frame
		}
		fmt.Fprintf(w, "%s\t%d× %s\t%s\t%s\n", line.Key, line.Quantity, line.Title, config, line.Price)
	}
	fmt.Fprintf(w, "\tTotal\t\t%s\n", domain.FormatPrice(a.cart.Total()))
	return w.Flush()
}

func (a *app) printWishlist() error {
	entries := a.wishlist.Entries()
	if len(entries) == 0 {
		fmt.Println("The wishlist is empty.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		note := ""
		if e.InStock != nil && !*e.InStock {
			note = "épuisé"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ProductID, e.Title, e.Artist, e.Price, note)
	}
	return w.Flush()
}

func printProducts(products []domain.Product) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, p := range products {
		note := ""
		if !p.InStock {
			note = "épuisé"
		} else if p.FlashSale {
			note = "vente flash"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Title, p.Artist, domain.FormatPrice(p.Price), note)
	}
	_ = w.Flush()
}

func stars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}
