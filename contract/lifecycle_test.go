package contract

import (
	"testing"

	"coffeetrace/model"
)

func TestFullLifecycle(t *testing.T) {
	l := bootstrappedLedger(t)
	c := l.contract
	const upc = uint64(101)
	const price = uint64(500)

	if _, err := c.FundAccount(l.as(distributorID), 1000); err != nil {
		t.Fatalf("FundAccount: %v", err)
	}

	item, err := c.HarvestItem(l.as(farmerID), upc,
		"Bealeza Farm", "Washed arabica, 1900m", "6.3833", "36.5833", "Lot A")
	if err != nil {
		t.Fatalf("HarvestItem: %v", err)
	}
	if item.SKU != 1 {
		t.Errorf("expected first SKU 1, got %d", item.SKU)
	}
	if item.ProductID != item.SKU+upc {
		t.Errorf("expected productId %d, got %d", item.SKU+upc, item.ProductID)
	}
	if item.OwnerID != farmerID || item.OriginFarmerID != farmerID {
		t.Errorf("expected farmer as owner and origin, got owner %q origin %q", item.OwnerID, item.OriginFarmerID)
	}
	if item.State != model.StateHarvested || item.StateName != "Harvested" {
		t.Errorf("unexpected state after harvest: %d %q", item.State, item.StateName)
	}

	if item, err = c.ProcessItem(l.as(farmerID), upc); err != nil {
		t.Fatalf("ProcessItem: %v", err)
	}
	if item.State != model.StateProcessed {
		t.Errorf("expected Processed, got %s", item.State)
	}

	if item, err = c.PackItem(l.as(farmerID), upc); err != nil {
		t.Fatalf("PackItem: %v", err)
	}
	if item.State != model.StatePacked {
		t.Errorf("expected Packed, got %s", item.State)
	}

	if item, err = c.SellItem(l.as(farmerID), upc, price); err != nil {
		t.Fatalf("SellItem: %v", err)
	}
	if item.State != model.StateForSale || item.ProductPrice != price {
		t.Errorf("expected ForSale at %d, got %s at %d", price, item.State, item.ProductPrice)
	}

	// Payment above the price: only the price moves, the excess stays with
	// the buyer.
	if item, err = c.BuyItem(l.as(distributorID), upc, 750); err != nil {
		t.Fatalf("BuyItem: %v", err)
	}
	if item.State != model.StateSold {
		t.Errorf("expected Sold, got %s", item.State)
	}
	if item.OwnerID != distributorID || item.DistributorID != distributorID {
		t.Errorf("expected distributor custody, got owner %q distributor %q", item.OwnerID, item.DistributorID)
	}
	farmerBalance, err := c.GetAccountBalance(l.as(farmerID), farmerID)
	if err != nil {
		t.Fatalf("GetAccountBalance farmer: %v", err)
	}
	if farmerBalance != price {
		t.Errorf("expected farmer balance %d, got %d", price, farmerBalance)
	}
	buyerBalance, err := c.GetAccountBalance(l.as(distributorID), "beanflow")
	if err != nil {
		t.Fatalf("GetAccountBalance buyer: %v", err)
	}
	if buyerBalance != 1000-price {
		t.Errorf("expected buyer balance %d, got %d", 1000-price, buyerBalance)
	}

	if item, err = c.ShipItem(l.as(distributorID), upc); err != nil {
		t.Fatalf("ShipItem: %v", err)
	}
	if item.State != model.StateShipped {
		t.Errorf("expected Shipped, got %s", item.State)
	}

	if item, err = c.ReceiveItem(l.as(retailerID), upc); err != nil {
		t.Fatalf("ReceiveItem: %v", err)
	}
	if item.State != model.StateReceived {
		t.Errorf("expected Received, got %s", item.State)
	}
	if item.OwnerID != retailerID || item.RetailerID != retailerID {
		t.Errorf("expected retailer custody, got owner %q retailer %q", item.OwnerID, item.RetailerID)
	}

	if item, err = c.PurchaseItem(l.as(consumerID), upc); err != nil {
		t.Fatalf("PurchaseItem: %v", err)
	}
	if item.State != model.StatePurchased {
		t.Errorf("expected Purchased, got %s", item.State)
	}
	if item.OwnerID != consumerID || item.ConsumerID != consumerID {
		t.Errorf("expected consumer custody, got owner %q consumer %q", item.OwnerID, item.ConsumerID)
	}

	// Provenance survives the whole chain untouched.
	if item.OriginFarmerID != farmerID || item.OriginFarmName != "Bealeza Farm" {
		t.Errorf("provenance mutated: %+v", item)
	}

	// Exactly one audit event per transition, in order, with strictly
	// increasing sequence numbers.
	events, err := c.GetItemAuditTrail(l.as(adminID), upc)
	if err != nil {
		t.Fatalf("GetItemAuditTrail: %v", err)
	}
	wantKinds := []string{"Harvested", "Processed", "Packed", "ForSale", "Sold", "Shipped", "Received", "Purchased"}
	if len(events) != len(wantKinds) {
		t.Fatalf("expected %d audit events, got %d", len(wantKinds), len(events))
	}
	var lastSeq uint64
	for i, event := range events {
		if event.Kind != wantKinds[i] {
			t.Errorf("event %d: expected kind %q, got %q", i, wantKinds[i], event.Kind)
		}
		if event.NewState != wantKinds[i] {
			t.Errorf("event %d: expected newState %q, got %q", i, wantKinds[i], event.NewState)
		}
		if event.Seq <= lastSeq {
			t.Errorf("event %d: sequence %d not increasing (previous %d)", i, event.Seq, lastSeq)
		}
		lastSeq = event.Seq
	}
}

func TestSKUAdvancesPerHarvest(t *testing.T) {
	l := bootstrappedLedger(t)
	c := l.contract

	l.harvest(201)
	l.harvest(202)

	first, err := c.GetItem(l.as(adminID), 201)
	if err != nil {
		t.Fatalf("GetItem 201: %v", err)
	}
	second, err := c.GetItem(l.as(adminID), 202)
	if err != nil {
		t.Fatalf("GetItem 202: %v", err)
	}
	if first.SKU != 1 || second.SKU != 2 {
		t.Errorf("expected SKUs 1 and 2, got %d and %d", first.SKU, second.SKU)
	}
}
