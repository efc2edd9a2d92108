package main

import (
	"flag"
	"fmt"
	"os"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
)

// inventory-rebuild replays the stock ledger per product and reports any
// product whose materialized quantity_on_hand has diverged from what the
// ledger says. The ledger is the source of truth, so --repair rewrites
// the materialized quantity to the replayed balance; no ledger entry is
// written because the ledger itself was never wrong.
func main() {
	productId := flag.Int("product-id", 0, "check a single product (0 = all products)")
	repair := flag.Bool("repair", false, "write the replayed balance back when it diverges")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()

	var products []*models.Product
	query := db
	if *productId > 0 {
		query = query.Where("id = ?", *productId)
	}
	if err := query.Order("id").Find(&products).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to load products: %v\n", err)
		os.Exit(1)
	}

	divergent := 0
	broken := 0
	for _, product := range products {
		var mutations []*models.StockMutation
		if err := db.Where("product_id = ?", product.ID).
			Order("created_at, id").Find(&mutations).Error; err != nil {
			fmt.Fprintf(os.Stderr, "product %d: failed to load ledger: %v\n", product.ID, err)
			os.Exit(1)
		}

		bootstrap := 0
		if len(mutations) > 0 {
			bootstrap = mutations[0].PreviousStock
		}
		balance, err := models.ReplayMutations(bootstrap, mutations)
		if err != nil {
			broken++
			fmt.Printf("product %d (%s): ledger inconsistent: %v\n", product.ID, product.Sku, err)
			continue
		}
		if balance == product.QuantityOnHand {
			continue
		}

		divergent++
		fmt.Printf("product %d (%s): materialized %d, ledger replays to %d\n",
			product.ID, product.Sku, product.QuantityOnHand, balance)
		if !*repair {
			continue
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			var locked models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&locked, product.ID).Error; err != nil {
				return err
			}
			return tx.Model(&locked).Update("quantity_on_hand", balance).Error
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "product %d: repair failed: %v\n", product.ID, err)
			os.Exit(1)
		}
		fmt.Printf("product %d (%s): repaired to %d\n", product.ID, product.Sku, balance)
	}

	fmt.Printf("checked %d products: %d divergent, %d with inconsistent ledgers\n",
		len(products), divergent, broken)
	if broken > 0 {
		os.Exit(2)
	}
}
