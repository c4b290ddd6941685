package onixcheck

// shortTags maps ONIX reference tag names to their short-tag equivalents.
// Rules, weight tables, and retailer profiles are authored against reference
// names; when a document uses the short convention, name tests are
// translated through this table before evaluation.
//
// The table covers the block 1-6 elements exercised by the shipped rule
// sets. Names absent from the table pass through unchanged.
var shortTags = map[string]string{
	"ONIXMessage":             "ONIXmessage",
	"Header":                  "header",
	"Sender":                  "sender",
	"SenderName":              "x298",
	"SentDateTime":            "x307",
	"Product":                 "product",
	"NoProduct":               "x507",
	"RecordReference":         "a001",
	"NotificationType":        "a002",
	"ProductIdentifier":       "productidentifier",
	"ProductIDType":           "b221",
	"IDTypeName":              "b233",
	"IDValue":                 "b244",
	"DescriptiveDetail":       "descriptivedetail",
	"ProductComposition":      "x314",
	"ProductForm":             "b012",
	"ProductFormDetail":       "b333",
	"Measure":                 "measure",
	"MeasureType":             "x315",
	"Measurement":             "c094",
	"MeasureUnitCode":         "c095",
	"TitleDetail":             "titledetail",
	"TitleType":               "b202",
	"TitleElement":            "titleelement",
	"TitleElementLevel":       "x409",
	"TitleText":               "b203",
	"Subtitle":                "b029",
	"Contributor":             "contributor",
	"SequenceNumber":          "b034",
	"ContributorRole":         "b035",
	"PersonName":              "b036",
	"PersonNameInverted":      "b037",
	"NamesBeforeKey":          "b039",
	"KeyNames":                "b040",
	"NoContributor":           "n339",
	"EditionNumber":           "b057",
	"Language":                "language",
	"LanguageRole":            "b253",
	"LanguageCode":            "b252",
	"Extent":                  "extent",
	"ExtentType":              "b218",
	"ExtentValue":             "b219",
	"ExtentUnit":              "b220",
	"Subject":                 "subject",
	"MainSubject":             "x425",
	"SubjectSchemeIdentifier": "b067",
	"SubjectSchemeVersion":    "b068",
	"SubjectCode":             "b069",
	"SubjectHeadingText":      "b070",
	"Audience":                "audience",
	"AudienceCodeType":        "b204",
	"AudienceCodeValue":       "b206",
	"Collection":              "collection",
	"CollectionType":          "x329",
	"CollateralDetail":        "collateraldetail",
	"TextContent":             "textcontent",
	"TextType":                "x426",
	"ContentAudience":         "x427",
	"Text":                    "d104",
	"SupportingResource":      "supportingresource",
	"ResourceContentType":     "x436",
	"ResourceMode":            "x437",
	"ResourceVersion":         "resourceversion",
	"ResourceForm":            "x441",
	"ResourceLink":            "x435",
	"PublishingDetail":        "publishingdetail",
	"Imprint":                 "imprint",
	"ImprintName":             "b079",
	"Publisher":               "publisher",
	"PublishingRole":          "b291",
	"PublisherName":           "b081",
	"PublishingStatus":        "b394",
	"PublishingDate":          "publishingdate",
	"PublishingDateRole":      "x448",
	"Date":                    "b306",
	"DateFormat":              "j260",
	"SalesRights":             "salesrights",
	"SalesRightsType":         "b089",
	"Territory":               "territory",
	"CountriesIncluded":       "x449",
	"RegionsIncluded":         "x450",
	"CountriesExcluded":       "x451",
	"RegionsExcluded":         "x452",
	"ProductSupply":           "productsupply",
	"Market":                  "market",
	"SupplyDetail":            "supplydetail",
	"Supplier":                "supplier",
	"SupplierRole":            "j292",
	"SupplierName":            "j137",
	"ProductAvailability":     "j396",
	"Price":                   "price",
	"PriceType":               "x462",
	"PriceAmount":             "j151",
	"CurrencyCode":            "j152",
	"UnpricedItemType":        "j192",
}

// translateTag returns the document-native spelling of a reference tag name
// for the given convention.
func translateTag(name string, convention Convention) string {
	if convention != ConventionShort {
		return name
	}
	if short, ok := shortTags[name]; ok {
		return short
	}
	return name
}
