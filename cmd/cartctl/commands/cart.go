package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/artfolio/cartstore/pkg/cart"
	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	userID      string
	productJSON string
	quantity    int
	refreshList bool
	listJSON    bool
)

var addArtworkCmd = &cobra.Command{
	Use:   "add-artwork",
	Short: "Add an artwork to the cart (quantity is always 1)",
	RunE:  runAddArtwork,
}

var addMaterialCmd = &cobra.Command{
	Use:   "add-material",
	Short: "Add an art material to the cart, merging with an existing line",
	RunE:  runAddMaterial,
}

var listItemsCmd = &cobra.Command{
	Use:   "list",
	Short: "List cart items, newest first",
	RunE:  runListItems,
}

var updateCmd = &cobra.Command{
	Use:   "update <line-id> <quantity>",
	Short: "Set a material line's quantity (0 removes the line)",
	Args:  cobra.ExactArgs(2),
	RunE:  runUpdate,
}

var removeCmd = &cobra.Command{
	Use:   "remove <line-id>",
	Short: "Remove a cart line",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every line in the user's cart",
	RunE:  runClear,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the total quantity in the user's cart",
	RunE:  runCount,
}

func init() {
	for _, cmd := range []*cobra.Command{addArtworkCmd, addMaterialCmd, listItemsCmd, updateCmd, removeCmd, clearCmd, countCmd} {
		cmd.Flags().StringVar(&userID, "user", "", "Owning user id")
		cmd.MarkFlagRequired("user")
		rootCmd.AddCommand(cmd)
	}

	addArtworkCmd.Flags().StringVar(&productJSON, "product", "", "Product JSON, or @file")
	addMaterialCmd.Flags().StringVar(&productJSON, "product", "", "Product JSON, or @file")
	addMaterialCmd.Flags().IntVar(&quantity, "quantity", 1, "Quantity to add")

	listItemsCmd.Flags().BoolVar(&refreshList, "refresh", false, "Re-fetch snapshots from the catalog first")
	listItemsCmd.Flags().BoolVar(&listJSON, "json", false, "Print items as JSON")
}

func runAddArtwork(cmd *cobra.Command, args []string) error {
	raw, err := readProduct(productJSON)
	if err != nil {
		return err
	}
	in, err := cart.ParseArtwork(raw)
	if err != nil {
		return errors.Wrap(err, "invalid artwork")
	}

	conn, store, err := openStore()
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := store.AddArtwork(cmd.Context(), *in, userID)
	if err != nil {
		return errors.Wrap(err, "add artwork failed")
	}
	fmt.Printf("%s (line %d)\n", res.Message, res.LineID)
	return nil
}

func runAddMaterial(cmd *cobra.Command, args []string) error {
	raw, err := readProduct(productJSON)
	if err != nil {
		return err
	}
	in, err := cart.ParseMaterial(raw)
	if err != nil {
		return errors.Wrap(err, "invalid material")
	}

	conn, store, err := openStore()
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := store.AddMaterial(cmd.Context(), *in, userID, quantity)
	if err != nil {
		if details := stockDetails(err); details != "" {
			return fmt.Errorf("add material failed: %w (%s)", err, details)
		}
		return errors.Wrap(err, "add material failed")
	}
	fmt.Printf("%s (line %d, quantity %d)\n", res.Message, res.LineID, res.Quantity)
	return nil
}

func runListItems(cmd *cobra.Command, args []string) error {
	conn, store, err := openStore()
	if err != nil {
		return err
	}
	defer conn.Close()

	items, err := store.Items(cmd.Context(), userID, refreshList)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Println("Cart is empty")
		return nil
	}

	fmt.Printf("%-6s %-9s %-24s %-36s %5s %10s %10s\n", "LINE", "TYPE", "PRODUCT", "NAME", "QTY", "PRICE", "SUBTOTAL")
	fmt.Println("------------------------------------------------------------------------------------------------------------")

	var total float64
	for _, item := range items {
		name := "-"
		switch {
		case item.Artwork != nil:
			name = item.Artwork.Title
		case item.Material != nil:
			name = item.Material.Name
		}
		fmt.Printf("%-6d %-9s %-24s %-36s %5d %10.2f %10.2f\n",
			item.ID, item.Kind, item.ProductID, orDash(name), item.Quantity, item.Price(), item.Subtotal())
		total += item.Subtotal()
	}
	fmt.Printf("%96s %10.2f\n", "TOTAL", total)

	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	lineID, err := parseLineID(args[0])
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid quantity %q", args[1])
	}

	conn, store, err := openStore()
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := store.UpdateQuantity(cmd.Context(), lineID, qty, userID)
	if err != nil {
		if details := stockDetails(err); details != "" {
			return fmt.Errorf("update failed: %w (%s)", err, details)
		}
		return errors.Wrap(err, "update failed")
	}
	fmt.Println(res.Message)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	lineID, err := parseLineID(args[0])
	if err != nil {
		return err
	}

	conn, store, err := openStore()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := store.Remove(cmd.Context(), lineID, userID); err != nil {
		return errors.Wrap(err, "remove failed")
	}
	fmt.Printf("Removed line %d\n", lineID)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	conn, store, err := openStore()
	if err != nil {
		return err
	}
	defer conn.Close()

	n, err := store.Clear(cmd.Context(), userID)
	if err != nil {
		return errors.Wrap(err, "clear failed")
	}
	fmt.Printf("Removed %d line(s)\n", n)
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	conn, store, err := openStore()
	if err != nil {
		return err
	}
	defer conn.Close()

	n, err := store.Count(cmd.Context(), userID)
	if err != nil {
		return errors.Wrap(err, "count failed")
	}
	fmt.Println(n)
	return nil
}

// stockDetails renders requested/available for a stock_exceeded error.
func stockDetails(err error) string {
	var e *errors.Error
	if !errors.As(err, &e) || e.Kind() != errors.KindStockExceeded {
		return ""
	}
	d := e.Details()
	return fmt.Sprintf("requested %v, available %v", d["requested"], d["available"])
}
