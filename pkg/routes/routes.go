// Package routes knows the page paths of the host web app that a completed
// transaction can lead to.
package routes

import (
	"net/url"
	"strings"
)

// PostPath returns the path of a post's thread page.
func PostPath(postHashHex string) string {
	return "/posts/" + postHashHex
}

// NFTPath returns the path of an NFT's post page.
func NFTPath(postHashHex string) string {
	return "/nft/" + postHashHex
}

// NFTBurnPath returns the path of the burn page for an NFT.
func NFTBurnPath(postHashHex string) string {
	return NFTPath(postHashHex) + "/burn"
}

// NFTTransferPath returns the path of the transfer page for an NFT.
func NFTTransferPath(postHashHex string) string {
	return NFTPath(postHashHex) + "/transfer"
}

// NFTTransfersPath is the page listing NFT transfers awaiting acceptance.
const NFTTransfersPath = "/nft-transfers"

// ProfilePath returns the path of a user's profile page. A public key works
// in place of a username.
func ProfilePath(usernameOrPublicKey string) string {
	return "/u/" + usernameOrPublicKey
}

func segments(path string) []string {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	return strings.Split(path, "/")
}

// IsNFTBurnPath reports whether path is an NFT burn page (/nft/<hash>/burn).
func IsNFTBurnPath(path string) bool {
	s := segments(path)
	return len(s) > 2 && s[1] == "nft" && s[len(s)-1] == "burn"
}

// IsNFTTransferPath reports whether path is an NFT transfer page
// (/nft/<hash>/transfer).
func IsNFTTransferPath(path string) bool {
	s := segments(path)
	return len(s) > 2 && s[1] == "nft" && s[len(s)-1] == "transfer"
}

// IsNFTTransfersPath reports whether path is the pending transfers page.
func IsNFTTransfersPath(path string) bool {
	s := segments(path)
	return len(s) > 1 && s[1] == "nft-transfers"
}

// IsNFTFlowPath reports whether path belongs to an NFT transfer or burn flow.
// A transaction finished from one of these pages reloads it in place.
func IsNFTFlowPath(path string) bool {
	return IsNFTBurnPath(path) || IsNFTTransferPath(path) || IsNFTTransfersPath(path)
}

// Join resolves path against the app's base URL.
func Join(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
