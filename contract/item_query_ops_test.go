package contract

import (
	"reflect"
	"testing"

	"coffeetrace/model"
)

func TestProvenanceAndCommercialViews(t *testing.T) {
	l := bootstrappedLedger(t)
	c := l.contract
	l.advanceToForSale(401, 350)

	prov, err := c.FetchItemProvenance(l.as(consumerID), 401)
	if err != nil {
		t.Fatalf("FetchItemProvenance: %v", err)
	}
	if prov.UPC != 401 || prov.SKU != 1 {
		t.Errorf("unexpected identifiers: %+v", prov)
	}
	if prov.OwnerID != farmerID || prov.OriginFarmerID != farmerID {
		t.Errorf("unexpected ownership: %+v", prov)
	}
	if prov.OriginFarmName != "Bealeza Farm" || prov.OriginFarmLatitude != "6.3833" {
		t.Errorf("unexpected origin fields: %+v", prov)
	}

	comm, err := c.FetchItemCommercial(l.as(consumerID), 401)
	if err != nil {
		t.Fatalf("FetchItemCommercial: %v", err)
	}
	if comm.ProductPrice != 350 || comm.State != model.StateForSale || comm.StateName != "ForSale" {
		t.Errorf("unexpected commercial fields: %+v", comm)
	}
	if comm.ProductID != comm.SKU+comm.UPC {
		t.Errorf("productId mismatch: %+v", comm)
	}
	if comm.DistributorID != "" || comm.RetailerID != "" || comm.ConsumerID != "" {
		t.Errorf("downstream parties set before any sale: %+v", comm)
	}

	// Reads are repeatable: a second call without an intervening write
	// returns the identical view.
	again, err := c.FetchItemCommercial(l.as(consumerID), 401)
	if err != nil {
		t.Fatalf("repeated FetchItemCommercial: %v", err)
	}
	if !reflect.DeepEqual(comm, again) {
		t.Errorf("repeated read differs: %+v vs %+v", comm, again)
	}

	// Reads never mutate: the audit trail is exactly as long as before.
	events, err := c.GetItemAuditTrail(l.as(adminID), 401)
	if err != nil {
		t.Fatalf("GetItemAuditTrail: %v", err)
	}
	if len(events) != 4 {
		t.Errorf("expected 4 audit events after listing, got %d", len(events))
	}
}

func TestGetMyItems(t *testing.T) {
	l := bootstrappedLedger(t)
	c := l.contract

	l.harvest(402)
	l.advanceToForSale(403, 200)

	mine, err := c.GetMyItems(l.as(farmerID))
	if err != nil {
		t.Fatalf("GetMyItems farmer: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 items for farmer, got %d", len(mine))
	}

	theirs, err := c.GetMyItems(l.as(distributorID))
	if err != nil {
		t.Fatalf("GetMyItems distributor: %v", err)
	}
	if len(theirs) != 0 {
		t.Errorf("expected no items for distributor, got %d", len(theirs))
	}

	// Custody moves the lot between the two result sets.
	if _, err := c.FundAccount(l.as(distributorID), 200); err != nil {
		t.Fatalf("FundAccount: %v", err)
	}
	if _, err := c.BuyItem(l.as(distributorID), 403, 200); err != nil {
		t.Fatalf("BuyItem: %v", err)
	}
	mine, _ = c.GetMyItems(l.as(farmerID))
	theirs, _ = c.GetMyItems(l.as(distributorID))
	if len(mine) != 1 || len(theirs) != 1 {
		t.Errorf("expected 1 item each after sale, got %d and %d", len(mine), len(theirs))
	}
	if theirs[0].UPC != 403 {
		t.Errorf("distributor owns the wrong lot: %d", theirs[0].UPC)
	}
}

func TestGetAuditTrailPaging(t *testing.T) {
	l := bootstrappedLedger(t)
	c := l.contract
	l.advanceToForSale(404, 100)

	all, err := c.GetAuditTrail(l.as(adminID), 0, 0)
	if err != nil {
		t.Fatalf("GetAuditTrail: %v", err)
	}
	// Bootstrap plus four register/add pairs, then four lifecycle events.
	if len(all) != 13 {
		t.Fatalf("expected 13 audit events, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Seq <= all[i-1].Seq {
			t.Fatalf("audit trail out of order at %d: %d then %d", i, all[i-1].Seq, all[i].Seq)
		}
	}

	page, err := c.GetAuditTrail(l.as(adminID), 0, 5)
	if err != nil {
		t.Fatalf("GetAuditTrail page: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("expected page of 5, got %d", len(page))
	}

	rest, err := c.GetAuditTrail(l.as(adminID), page[len(page)-1].Seq, 0)
	if err != nil {
		t.Fatalf("GetAuditTrail rest: %v", err)
	}
	if len(rest) != len(all)-len(page) {
		t.Errorf("expected %d remaining events, got %d", len(all)-len(page), len(rest))
	}
	if rest[0].Seq != page[len(page)-1].Seq+1 {
		t.Errorf("pages overlap or skip: %d after %d", rest[0].Seq, page[len(page)-1].Seq)
	}
}

func TestMembershipEventsInAuditTrail(t *testing.T) {
	l := bootstrappedLedger(t)

	all, err := l.contract.GetAuditTrail(l.as(adminID), 0, 0)
	if err != nil {
		t.Fatalf("GetAuditTrail: %v", err)
	}
	if all[0].Kind != "AdministratorBootstrapped" || all[0].ActorID != adminID {
		t.Errorf("unexpected first event: %+v", all[0])
	}
	kinds := map[string]bool{}
	for _, event := range all {
		kinds[event.Kind] = true
		if event.UPC != 0 || event.NewState != "" {
			t.Errorf("membership event carries item fields: %+v", event)
		}
	}
	for _, want := range []string{"ActorRegistered", "FarmerAdded", "DistributorAdded", "RetailerAdded", "ConsumerAdded"} {
		if !kinds[want] {
			t.Errorf("missing membership event kind %q", want)
		}
	}
}

func TestGetItemHistory(t *testing.T) {
	l := bootstrappedLedger(t)
	c := l.contract
	l.advanceToForSale(405, 100)

	entries, err := c.GetItemHistory(l.as(consumerID), 405)
	if err != nil {
		t.Fatalf("GetItemHistory: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 revisions, got %d", len(entries))
	}
	wantStates := []string{"Harvested", "Processed", "Packed", "ForSale"}
	for i, entry := range entries {
		if entry.State != wantStates[i] {
			t.Errorf("revision %d: expected state %q, got %q", i, wantStates[i], entry.State)
		}
		if entry.OwnerID != farmerID {
			t.Errorf("revision %d: unexpected owner %q", i, entry.OwnerID)
		}
		if entry.TxID == "" {
			t.Errorf("revision %d: missing tx ID", i)
		}
	}
}

func TestGetItemEnrichesAliases(t *testing.T) {
	l := bootstrappedLedger(t)
	l.harvest(406)

	item, err := l.contract.GetItem(l.as(consumerID), 406)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.OwnerAlias != "bealeza" || item.OriginFarmerAlias != "bealeza" {
		t.Errorf("aliases not resolved: owner %q origin %q", item.OwnerAlias, item.OriginFarmerAlias)
	}
}
