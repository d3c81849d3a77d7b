package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "/posts/deadbeef", PostPath("deadbeef"))
	assert.Equal(t, "/nft/cafe01", NFTPath("cafe01"))
	assert.Equal(t, "/nft/cafe01/burn", NFTBurnPath("cafe01"))
	assert.Equal(t, "/nft/cafe01/transfer", NFTTransferPath("cafe01"))
	assert.Equal(t, "/u/alice", ProfilePath("alice"))
}

func TestNFTFlowPredicates(t *testing.T) {
	tests := []struct {
		path      string
		burn      bool
		transfer  bool
		transfers bool
	}{
		{"/nft/cafe01/burn", true, false, false},
		{"/nft/cafe01/transfer", false, true, false},
		{"/nft/cafe01/transfer?tab=1", false, true, false},
		{"/nft-transfers", false, false, true},
		{"https://bitclout.com/nft-transfers", false, false, true},
		{"/nft/cafe01", false, false, false},
		{"/posts/burn", false, false, false},
		{"/", false, false, false},
		{"", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.burn, IsNFTBurnPath(tt.path))
			assert.Equal(t, tt.transfer, IsNFTTransferPath(tt.path))
			assert.Equal(t, tt.transfers, IsNFTTransfersPath(tt.path))
			assert.Equal(t, tt.burn || tt.transfer || tt.transfers, IsNFTFlowPath(tt.path))
		})
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "https://bitclout.com/posts/ab", Join("https://bitclout.com/", "/posts/ab"))
	assert.Equal(t, "https://bitclout.com/u/bob", Join("https://bitclout.com", "u/bob"))
}
