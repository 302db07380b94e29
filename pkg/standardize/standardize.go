// Package standardize settles which company an email belongs to. Documents
// from one message can name the same company on either side and with
// inconsistent spellings. We pick one dominant entity, rewrite every
// document so that company sits on the entity side, and derive the money
// direction relative to it.
package standardize

import (
	"sort"

	"hoadon/pkg/models"
	"hoadon/pkg/registry"
)

// Dominant is the company an email's documents were standardized around.
type Dominant struct {
	Name      string
	TaxNumber string
}

type candidate struct {
	display string
	tax     string
	score   float64
	volume  float64
}

// Apply finds the dominant company across the documents of one email and
// rewrites each document in place so the entity side is always that
// company. Returns the zero Dominant when nothing usable was found.
func Apply(docs []*models.Document, reg *registry.Registry) Dominant {
	dom := dominantEntity(docs)
	if dom.Name == "" && dom.TaxNumber == "" {
		return dom
	}

	if reg != nil {
		if c, ok := reg.LookupTaxNumber(dom.TaxNumber); ok {
			dom.Name = c.Name
		} else {
			dom.Name = reg.Canonical(dom.Name)
		}
	}

	for _, doc := range docs {
		doc.Direction = direction(doc, dom)
		switch doc.Direction {
		case models.DirectionIncoming:
			// The dominant company was on the counterparty side.
			swapParties(doc)
		case models.DirectionUnknown:
			continue
		}
		doc.EntityName = dom.Name
		if doc.EntityTaxNumber == "" {
			doc.EntityTaxNumber = dom.TaxNumber
		}
	}
	return dom
}

// dominantEntity scores every company named across the documents. A single
// tax number shared by all mentions decides immediately. Otherwise issuers
// weigh 1.5 against 1.0 for counterparties, and when scores land within
// 0.5 of each other the company moving more money wins.
func dominantEntity(docs []*models.Document) Dominant {
	taxes := map[string]bool{}
	for _, doc := range docs {
		if t := models.NormalizeTaxNumber(doc.EntityTaxNumber); t != "" {
			taxes[t] = true
		}
		if t := models.NormalizeTaxNumber(doc.CounterpartyTaxNumber); t != "" {
			taxes[t] = true
		}
	}
	if len(taxes) == 1 {
		for tax := range taxes {
			return Dominant{Name: nameForTax(docs, tax), TaxNumber: tax}
		}
	}

	candidates := map[string]*candidate{}
	add := func(name, tax string, weight, volume float64) {
		key := models.NormalizeName(name)
		if key == "" {
			return
		}
		c := candidates[key]
		if c == nil {
			c = &candidate{display: name}
			candidates[key] = c
		}
		if c.tax == "" {
			c.tax = models.NormalizeTaxNumber(tax)
		}
		c.score += weight
		c.volume += volume
	}

	for _, doc := range docs {
		add(doc.EntityName, doc.EntityTaxNumber, 1.5, doc.TotalAmount)
		add(doc.CounterpartyName, doc.CounterpartyTaxNumber, 1.0, doc.TotalAmount)
	}

	keys := make([]string, 0, len(candidates))
	var maxScore float64
	for key, c := range candidates {
		keys = append(keys, key)
		if c.score > maxScore {
			maxScore = c.score
		}
	}
	sort.Strings(keys)

	// Everyone within half a point of the top score stays in the running,
	// then the company moving more money wins.
	var best *candidate
	for _, key := range keys {
		c := candidates[key]
		if c.score < maxScore-0.5 {
			continue
		}
		if best == nil || c.volume > best.volume ||
			(c.volume == best.volume && c.score > best.score) {
			best = c
		}
	}
	if best == nil {
		return Dominant{}
	}
	return Dominant{Name: best.display, TaxNumber: best.tax}
}

func nameForTax(docs []*models.Document, tax string) string {
	for _, doc := range docs {
		if models.NormalizeTaxNumber(doc.EntityTaxNumber) == tax && doc.EntityName != "" {
			return doc.EntityName
		}
		if models.NormalizeTaxNumber(doc.CounterpartyTaxNumber) == tax && doc.CounterpartyName != "" {
			return doc.CounterpartyName
		}
	}
	return ""
}

// direction is derived before any swap, from the party layout the document
// was issued with. Tax numbers are trusted over names.
func direction(doc *models.Document, dom Dominant) models.Direction {
	domTax := models.NormalizeTaxNumber(dom.TaxNumber)
	entTax := models.NormalizeTaxNumber(doc.EntityTaxNumber)
	cptTax := models.NormalizeTaxNumber(doc.CounterpartyTaxNumber)

	if domTax != "" && (entTax != "" || cptTax != "") {
		entIs := entTax == domTax
		cptIs := cptTax == domTax
		switch {
		case entIs && cptIs:
			return models.DirectionInternal
		case entIs:
			return models.DirectionOutgoing
		case cptIs:
			return models.DirectionIncoming
		}
	}

	domName := models.NormalizeName(dom.Name)
	entIs := domName != "" && models.NormalizeName(doc.EntityName) == domName
	cptIs := domName != "" && models.NormalizeName(doc.CounterpartyName) == domName
	switch {
	case entIs && cptIs:
		return models.DirectionInternal
	case entIs:
		return models.DirectionOutgoing
	case cptIs:
		return models.DirectionIncoming
	default:
		return models.DirectionUnknown
	}
}

func swapParties(doc *models.Document) {
	doc.EntityName, doc.CounterpartyName = doc.CounterpartyName, doc.EntityName
	doc.EntityTaxNumber, doc.CounterpartyTaxNumber = doc.CounterpartyTaxNumber, doc.EntityTaxNumber
}
