package blockgrp

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/ardanlabs/powledger/foundation/blockchain/chain"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/web"
)

// newBlock is the payload of a block submission. A field left out of the
// document stays nil so the ledger can tell it apart from an empty value.
type newBlock struct {
	ParentHash *string `json:"parent_hash"`
	Nonce      *string `json:"nonce"`
	Miner      *string `json:"miner"`
	Message    *string `json:"message"`
}

func (nb newBlock) toSubmission() state.Submission {
	return state.Submission{
		ParentHash: nb.ParentHash,
		Nonce:      nb.Nonce,
		Miner:      nb.Miner,
		Message:    nb.Message,
	}
}

// formAliases lists the accepted form keys per field, the short names are
// the ones older clients post.
var formAliases = []struct {
	keys []string
	dst  func(nb *newBlock) **string
}{
	{[]string{"parent_hash", "prev"}, func(nb *newBlock) **string { return &nb.ParentHash }},
	{[]string{"nonce"}, func(nb *newBlock) **string { return &nb.Nonce }},
	{[]string{"miner"}, func(nb *newBlock) **string { return &nb.Miner }},
	{[]string{"message", "msg"}, func(nb *newBlock) **string { return &nb.Message }},
}

// decodeNewBlock reads the submission from a JSON document or a URL encoded
// form depending on the content type.
func decodeNewBlock(r *http.Request) (newBlock, error) {
	var nb newBlock

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		if err := web.Decode(r, &nb); err != nil {
			return newBlock{}, fmt.Errorf("unable to decode payload: %w", err)
		}
		return nb, nil
	}

	if err := r.ParseForm(); err != nil {
		return newBlock{}, fmt.Errorf("unable to parse form: %w", err)
	}

	for _, fa := range formAliases {
		for _, k := range fa.keys {
			if vs, ok := r.PostForm[k]; ok && len(vs) > 0 {
				v := vs[0]
				*fa.dst(&nb) = &v
				break
			}
		}
	}

	return nb, nil
}

// index is the summary of the whole ledger.
type index struct {
	Blocks []chain.Block `json:"blocks"`
	Users  []string      `json:"users"`
}

// balance is the balance of an account as of a block.
type balance struct {
	Account string  `json:"account"`
	Hash    string  `json:"hash"`
	Balance float64 `json:"balance"`
}
