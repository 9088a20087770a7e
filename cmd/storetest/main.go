// Command storetest runs a handle round trip through every handle store
// backend against an in-memory filesystem.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/hack-pad/hackpadfs/mem"

	"github.com/kittclouds/garagebook/internal/store"
	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

func main() {
	ctx := context.Background()

	fs, err := mem.NewFS()
	if err != nil {
		log.Fatalf("mem.NewFS failed: %v", err)
	}
	host := fsaccess.NewLocalHost(fs, &fsaccess.StaticChooser{SavePath: "shop/mechanic-shop-data.json"})

	h, err := host.ShowSaveFilePicker(ctx, fsaccess.JSONPickerOptions("mechanic-shop-data.json"))
	if err != nil {
		log.Fatalf("ShowSaveFilePicker failed: %v", err)
	}

	fmt.Println("Testing MemStore...")
	testStore(ctx, store.NewMemStore(), h)

	fmt.Println("\nTesting SQLiteStore...")
	testStore(ctx, store.NewSQLiteStore(host), h)

	fmt.Println("\nTesting FileStore...")
	testStore(ctx, store.NewFileStore(fs, "handles", host), h)

	fmt.Println("\n✅ All tests passed!")
}

func testStore(ctx context.Context, s store.HandleStore, h fsaccess.FileHandle) {
	defer s.Close()

	if err := s.Open(ctx); err != nil {
		log.Fatalf("Open failed: %v", err)
	}
	fmt.Println("  ✓ Open works")

	if err := s.Put(ctx, h); err != nil {
		log.Fatalf("Put failed: %v", err)
	}
	fmt.Println("  ✓ Put works")

	got, err := s.Get(ctx)
	if err != nil {
		log.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		log.Fatal("Get returned nil")
	}
	if got.Name() != h.Name() {
		log.Fatalf("Get expected %q, got %q", h.Name(), got.Name())
	}
	fmt.Println("  ✓ Get works")

	if err := s.Delete(ctx); err != nil {
		log.Fatalf("Delete failed: %v", err)
	}
	if got, _ := s.Get(ctx); got != nil {
		log.Fatal("Get after Delete returned a handle")
	}
	fmt.Println("  ✓ Delete works")
}
