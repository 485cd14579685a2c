// Package seed holds the default news-source catalog used to bootstrap
// the crawl frontier when no caller-supplied seed list is given.
package seed

import "spiderd/internal/model"

// Default is the default catalog: general financial news at the default
// priority, official press-release feeds at priority -15.
var Default = []model.SeedSource{
	{Name: "Moneycontrol", BaseURL: "https://www.moneycontrol.com/", Path: "/"},
	{Name: "Economic Times", BaseURL: "https://economictimes.indiatimes.com/", Path: "/"},
	{Name: "Business Standard", BaseURL: "https://www.business-standard.com/", Path: "/"},
	{Name: "Mint (LiveMint)", BaseURL: "https://www.livemint.com/", Path: "/"},
	{Name: "CNBC-TV18", BaseURL: "https://www.cnbctv18.com/", Path: "/"},
	{Name: "NDTV Profit", BaseURL: "https://www.ndtvprofit.com/", Path: "/"},
	{Name: "PIB (Press Information Bureau)", BaseURL: "https://pib.gov.in/", Path: "/AllRelease.aspx", Priority: -15},
	{Name: "Ministry of Finance", BaseURL: "https://finmin.gov.in/", Path: "/press-releases", Priority: -15},
	{Name: "SEBI (Securities & Exchange Board)", BaseURL: "https://www.sebi.gov.in/", Path: "/sebiweb/home/HomeAction.do?doListing=yes&sid=1&ssid=7&smid=0", Priority: -15},
	{Name: "RBI (Reserve Bank of India)", BaseURL: "https://www.rbi.org.in/", Path: "/Scripts/BS_PressReleaseDisplay.aspx", Priority: -15},
	{Name: "GST Council", BaseURL: "https://gstcouncil.gov.in/", Path: "/press-release", Priority: -15},
}

// Catalog returns a copy of the default seed-source list, safe for the
// caller to mutate.
func Catalog() []model.SeedSource {
	out := make([]model.SeedSource, len(Default))
	copy(out, Default)
	return out
}
