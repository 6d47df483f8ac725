package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"sportpos/backend/internal/domain"
)

// The product file carries one record per line:
//
//	Shoe;id;name;description;price;stock;size;color;type
//	Clothe;id;name;description;price;stock;size;color;type
//	Accessories;id;name;description;price;stock;brand;type
//
// "Clothe" and the misspelled "Accesories" are legacy spellings kept
// on the wire for compatibility with files written by the original
// system. Invalid lines are skipped, not fatal.
type FileStore struct {
	path string
	log  zerolog.Logger
}

func NewFileStore(path string, log zerolog.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

func (s *FileStore) Load(_ context.Context) ([]domain.Product, int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.Product{}, 0, nil
		}
		return nil, 0, fmt.Errorf("open product file: %w", err)
	}
	defer f.Close()

	var (
		products []domain.Product
		skipped  int
		lineNo   int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p, err := decodeProduct(line)
		if err != nil {
			skipped++
			s.log.Warn().Int("line", lineNo).Err(err).Msg("skipping unparseable product line")
			continue
		}
		products = append(products, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read product file: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, skipped, nil
}

func (s *FileStore) Save(_ context.Context, products []domain.Product) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".products-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp product file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := bufio.NewWriter(tmp)
	for _, p := range products {
		line, err := encodeProduct(p)
		if err != nil {
			return fmt.Errorf("encode product %s: %w", p.ID, err)
		}
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace product file: %w", err)
	}
	return nil
}

func encodeProduct(p domain.Product) (string, error) {
	base := strings.Join([]string{
		p.ID, p.Name, p.Description,
		strconv.FormatFloat(p.UnitPrice, 'g', -1, 64),
		strconv.Itoa(p.Stock),
	}, ";")

	switch p.Category.Kind {
	case domain.KindShoe:
		a := p.Category.Shoe
		if a == nil {
			return "", fmt.Errorf("shoe product without shoe attributes")
		}
		return "Shoe;" + base + ";" + a.Size + ";" + a.Color + ";" + string(a.Type), nil
	case domain.KindClothing:
		a := p.Category.Clothing
		if a == nil {
			return "", fmt.Errorf("clothing product without clothing attributes")
		}
		return "Clothe;" + base + ";" + a.Size + ";" + a.Color + ";" + string(a.Type), nil
	case domain.KindAccessory:
		a := p.Category.Accessory
		if a == nil {
			return "", fmt.Errorf("accessory product without accessory attributes")
		}
		return "Accessories;" + base + ";" + a.Brand + ";" + string(a.Type), nil
	default:
		return "", fmt.Errorf("unknown product kind %q", p.Category.Kind)
	}
}

func decodeProduct(line string) (domain.Product, error) {
	fields := strings.Split(line, ";")
	if len(fields) < 8 {
		return domain.Product{}, fmt.Errorf("want at least 8 fields, got %d", len(fields))
	}

	price, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return domain.Product{}, fmt.Errorf("price: %w", err)
	}
	stock, err := strconv.Atoi(fields[5])
	if err != nil {
		return domain.Product{}, fmt.Errorf("stock: %w", err)
	}

	p := domain.Product{
		ID:          fields[1],
		Name:        fields[2],
		Description: fields[3],
		UnitPrice:   price,
		Stock:       stock,
	}

	switch fields[0] {
	case "Shoe":
		if len(fields) < 9 {
			return domain.Product{}, fmt.Errorf("shoe record wants 9 fields, got %d", len(fields))
		}
		typ, err := parseShoeType(fields[8])
		if err != nil {
			return domain.Product{}, err
		}
		p.Category = domain.Category{Kind: domain.KindShoe, Shoe: &domain.ShoeAttrs{
			Size: fields[6], Color: fields[7], Type: typ,
		}}
	case "Clothe":
		if len(fields) < 9 {
			return domain.Product{}, fmt.Errorf("clothing record wants 9 fields, got %d", len(fields))
		}
		typ, err := parseClothingType(fields[8])
		if err != nil {
			return domain.Product{}, err
		}
		p.Category = domain.Category{Kind: domain.KindClothing, Clothing: &domain.ClothingAttrs{
			Size: fields[6], Color: fields[7], Type: typ,
		}}
	case "Accessories", "Accesories":
		typ, err := parseAccessoryType(fields[7])
		if err != nil {
			return domain.Product{}, err
		}
		p.Category = domain.Category{Kind: domain.KindAccessory, Accessory: &domain.AccessoryAttrs{
			Brand: fields[6], Type: typ,
		}}
	default:
		return domain.Product{}, fmt.Errorf("unknown product kind %q", fields[0])
	}

	return p, nil
}

func parseShoeType(raw string) (domain.ShoeType, error) {
	switch t := domain.ShoeType(strings.ToUpper(raw)); t {
	case domain.ShoeRunning, domain.ShoeBasketball, domain.ShoeCasual, domain.ShoeBoots:
		return t, nil
	default:
		return "", fmt.Errorf("unknown shoe type %q", raw)
	}
}

func parseClothingType(raw string) (domain.ClothingType, error) {
	switch t := domain.ClothingType(strings.ToUpper(raw)); t {
	case domain.ClothingShirt, domain.ClothingShorts, domain.ClothingJacket, domain.ClothingSocks:
		return t, nil
	default:
		return "", fmt.Errorf("unknown clothing type %q", raw)
	}
}

func parseAccessoryType(raw string) (domain.AccessoryType, error) {
	switch t := domain.AccessoryType(strings.ToUpper(raw)); t {
	case domain.AccessoryCap, domain.AccessoryGloves, domain.AccessoryBag, domain.AccessoryWatch:
		return t, nil
	default:
		return "", fmt.Errorf("unknown accessory type %q", raw)
	}
}
