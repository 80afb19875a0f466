package contract

import (
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// In-memory stand-in for the peer's world state. Only the stub surface the
// contract actually touches is implemented; everything else panics through
// the embedded nil interface, which is exactly what we want in a test.

const keyNamespace = "\x00"

type ledgerRevision struct {
	txID     string
	value    []byte
	isDelete bool
	ts       time.Time
}

type mockStub struct {
	shim.ChaincodeStubInterface
	state   map[string][]byte
	history map[string][]ledgerRevision
	events  map[string][]byte
	txID    string
	txTime  time.Time
}

func newMockStub() *mockStub {
	return &mockStub{
		state:   map[string][]byte{},
		history: map[string][]ledgerRevision{},
		events:  map[string][]byte{},
		txID:    "tx-0",
		txTime:  time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *mockStub) GetState(key string) ([]byte, error) {
	return s.state[key], nil
}

func (s *mockStub) PutState(key string, value []byte) error {
	s.state[key] = value
	s.history[key] = append(s.history[key], ledgerRevision{txID: s.txID, value: value, ts: s.txTime})
	return nil
}

func (s *mockStub) DelState(key string) error {
	delete(s.state, key)
	s.history[key] = append(s.history[key], ledgerRevision{txID: s.txID, isDelete: true, ts: s.txTime})
	return nil
}

func (s *mockStub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	key := keyNamespace + objectType + keyNamespace
	for _, attr := range attributes {
		key += attr + keyNamespace
	}
	return key, nil
}

func (s *mockStub) GetStateByPartialCompositeKey(objectType string, attributes []string) (shim.StateQueryIteratorInterface, error) {
	prefix, _ := s.CreateCompositeKey(objectType, attributes)

	keys := []string{}
	for key := range s.state {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	kvs := make([]*queryresult.KV, 0, len(keys))
	for _, key := range keys {
		kvs = append(kvs, &queryresult.KV{Key: key, Value: s.state[key]})
	}
	return &mockStateIterator{kvs: kvs}, nil
}

func (s *mockStub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	revisions := s.history[key]
	mods := make([]*queryresult.KeyModification, 0, len(revisions))
	for _, rev := range revisions {
		mods = append(mods, &queryresult.KeyModification{
			TxId:      rev.txID,
			Value:     rev.value,
			IsDelete:  rev.isDelete,
			Timestamp: timestamppb.New(rev.ts),
		})
	}
	return &mockHistoryIterator{mods: mods}, nil
}

func (s *mockStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(s.txTime), nil
}

func (s *mockStub) GetTxID() string {
	return s.txID
}

func (s *mockStub) SetEvent(name string, payload []byte) error {
	s.events[name] = payload
	return nil
}

type mockStateIterator struct {
	kvs []*queryresult.KV
	pos int
}

func (it *mockStateIterator) HasNext() bool { return it.pos < len(it.kvs) }
func (it *mockStateIterator) Close() error  { return nil }
func (it *mockStateIterator) Next() (*queryresult.KV, error) {
	kv := it.kvs[it.pos]
	it.pos++
	return kv, nil
}

type mockHistoryIterator struct {
	mods []*queryresult.KeyModification
	pos  int
}

func (it *mockHistoryIterator) HasNext() bool { return it.pos < len(it.mods) }
func (it *mockHistoryIterator) Close() error  { return nil }
func (it *mockHistoryIterator) Next() (*queryresult.KeyModification, error) {
	mod := it.mods[it.pos]
	it.pos++
	return mod, nil
}

type mockClientIdentity struct {
	cid.ClientIdentity
	id string
}

func (m *mockClientIdentity) GetID() (string, error) { return m.id, nil }

type mockTransactionContext struct {
	stub     *mockStub
	identity *mockClientIdentity
}

func (c *mockTransactionContext) GetStub() shim.ChaincodeStubInterface { return c.stub }
func (c *mockTransactionContext) GetClientIdentity() cid.ClientIdentity {
	return c.identity
}

// --- Test fixture ---

const (
	adminID        = "x509::CN=admin,OU=org1"
	farmerID       = "x509::CN=bealeza-farm,OU=org1"
	secondFarmerID = "x509::CN=yirga-farm,OU=org1"
	distributorID  = "x509::CN=beanflow,OU=org2"
	retailerID     = "x509::CN=cornerroast,OU=org3"
	consumerID     = "x509::CN=alice,OU=org3"
)

// testLedger wires a contract instance to one shared mock world state. Each
// as() call represents a fresh transaction by the given actor: new tx ID,
// advancing timestamp, same ledger.
type testLedger struct {
	t        *testing.T
	stub     *mockStub
	contract *SupplychainContract
	txSeq    int
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	return &testLedger{t: t, stub: newMockStub(), contract: &SupplychainContract{}}
}

func (l *testLedger) as(actorID string) *mockTransactionContext {
	l.txSeq++
	l.stub.txID = fmt.Sprintf("tx-%03d", l.txSeq)
	l.stub.txTime = l.stub.txTime.Add(time.Second)
	return &mockTransactionContext{stub: l.stub, identity: &mockClientIdentity{id: actorID}}
}

// bootstrappedLedger returns a ledger with the administrator installed and
// one actor registered per role.
func bootstrappedLedger(t *testing.T) *testLedger {
	t.Helper()
	l := newTestLedger(t)
	c := l.contract

	if err := c.InitLedger(l.as(adminID), "admin"); err != nil {
		t.Fatalf("InitLedger: %v", err)
	}
	register := func(actorID, alias, role string) {
		t.Helper()
		if err := c.RegisterActor(l.as(adminID), actorID, alias); err != nil {
			t.Fatalf("RegisterActor %s: %v", alias, err)
		}
		var err error
		switch role {
		case "farmer":
			err = c.AddFarmer(l.as(adminID), alias)
		case "distributor":
			err = c.AddDistributor(l.as(adminID), alias)
		case "retailer":
			err = c.AddRetailer(l.as(adminID), alias)
		case "consumer":
			err = c.AddConsumer(l.as(adminID), alias)
		}
		if err != nil {
			t.Fatalf("add role %s to %s: %v", role, alias, err)
		}
	}
	register(farmerID, "bealeza", "farmer")
	register(distributorID, "beanflow", "distributor")
	register(retailerID, "cornerroast", "retailer")
	register(consumerID, "alice", "consumer")
	return l
}

// harvest creates a lot owned by the fixture farmer.
func (l *testLedger) harvest(upc uint64) {
	l.t.Helper()
	_, err := l.contract.HarvestItem(l.as(farmerID), upc,
		"Bealeza Farm", "Washed arabica, 1900m", "6.3833", "36.5833", "Lot A")
	if err != nil {
		l.t.Fatalf("HarvestItem %d: %v", upc, err)
	}
}

// advanceToForSale walks a fresh lot through process, pack and listing.
func (l *testLedger) advanceToForSale(upc, price uint64) {
	l.t.Helper()
	l.harvest(upc)
	if _, err := l.contract.ProcessItem(l.as(farmerID), upc); err != nil {
		l.t.Fatalf("ProcessItem %d: %v", upc, err)
	}
	if _, err := l.contract.PackItem(l.as(farmerID), upc); err != nil {
		l.t.Fatalf("PackItem %d: %v", upc, err)
	}
	if _, err := l.contract.SellItem(l.as(farmerID), upc, price); err != nil {
		l.t.Fatalf("SellItem %d: %v", upc, err)
	}
}
