package ruleset

// DefaultWeights returns the built-in completeness rubric. The weights
// follow the Nielsen research correlating metadata completeness with sales
// performance: identifiers carry the most weight, marketing copy and
// commercial terms the middle band, and discovery enrichment the tail.
func DefaultWeights() *WeightTable {
	return &WeightTable{Fields: []FieldWeight{
		{Name: "isbn", Path: ".//ProductIdentifier[ProductIDType='15' or ProductIDType='03']/IDValue", Weight: 20, Category: CategoryRequired},
		{Name: "title", Path: ".//TitleDetail/TitleElement/TitleText", Weight: 15, Category: CategoryRequired},
		{Name: "contributors", Path: ".//Contributor/PersonName | .//Contributor/PersonNameInverted | .//Contributor/KeyNames", Weight: 12, Category: CategoryRequired},
		{Name: "description", Path: ".//TextContent[TextType='03']/Text", Weight: 10, Category: CategoryRecommended},
		{Name: "subject_codes", Path: ".//Subject/SubjectCode", Weight: 8, Category: CategoryRecommended},
		{Name: "product_form", Path: ".//ProductForm", Weight: 8, Category: CategoryRecommended},
		{Name: "price", Path: ".//Price/PriceAmount", Weight: 7, Category: CategoryRecommended},
		{Name: "publication_date", Path: ".//PublishingDate[PublishingDateRole='01']/Date | .//PublishingDate/Date", Weight: 5, Category: CategoryOptional},
		{Name: "publisher", Path: ".//Publisher/PublisherName", Weight: 5, Category: CategoryOptional},
		{Name: "imprint", Path: ".//Imprint/ImprintName", Weight: 4, Category: CategoryOptional},
		{Name: "series", Path: ".//Collection/TitleDetail/TitleElement/TitleText", Weight: 3, Category: CategoryOptional},
		{Name: "cover_image", Path: ".//SupportingResource[ResourceContentType='01']/ResourceVersion/ResourceLink", Weight: 3, Category: CategoryOptional},
	}}
}

// DefaultPatterns returns the built-in business rule pattern set. Composite
// structures are asserted as whole units: the territory rules walk the
// included/excluded country code lists rather than matching text fragments
// of a flattened string.
func DefaultPatterns() *PatternSet {
	return &PatternSet{Patterns: []Pattern{
		{
			ID:      "record-reference",
			Context: "//Product",
			Assertions: []Assertion{{
				Test:     "RecordReference",
				Severity: "error",
				Message:  "Product must carry a RecordReference",
			}},
		},
		{
			ID:      "identifier-present",
			Context: "//Product",
			Assertions: []Assertion{{
				Test:     "count(ProductIdentifier) > 0",
				Severity: "error",
				Message:  "Product must carry at least one ProductIdentifier",
			}},
		},
		{
			ID:      "isbn13-shape",
			Context: "//ProductIdentifier[ProductIDType='15']",
			Assertions: []Assertion{{
				Test:     "string-length(normalize-space(IDValue)) = 13",
				Severity: "error",
				Message:  "ISBN-13 identifier must be exactly 13 digits",
			}},
		},
		{
			ID:      "audio-contract-review",
			Context: "//Product[DescriptiveDetail/ProductForm = 'AB' or DescriptiveDetail/ProductForm = 'AJ']",
			Assertions: []Assertion{{
				Test:     "PublishingDetail/Publisher/PublisherName",
				Severity: "warning",
				Message:  "audio format requires contract review: publisher of record must be stated",
			}},
		},
		{
			ID:      "title-present",
			Context: "//Product/DescriptiveDetail",
			Assertions: []Assertion{{
				Test:     "TitleDetail/TitleElement/TitleText",
				Severity: "error",
				Message:  "DescriptiveDetail must carry a distinctive title",
			}},
		},
		{
			ID:      "publishing-date-roles",
			Context: "//Product/PublishingDetail",
			Assertions: []Assertion{{
				Test:     "not(PublishingStatus = '04') or PublishingDate[PublishingDateRole='01']/Date",
				Severity: "warning",
				Message:  "active products should state a publication date (role 01)",
			}},
		},
		{
			// Territory composites are evaluated structurally: a country is
			// excluded only when it appears in CountriesExcluded or when an
			// inclusion list exists that omits it entirely.
			ID:      "territory-composite",
			Context: "//SalesRights/Territory",
			Assertions: []Assertion{{
				Test:     "CountriesIncluded or RegionsIncluded or CountriesExcluded or RegionsExcluded",
				Severity: "error",
				Message:  "Territory composite must state included or excluded countries/regions",
			}},
		},
		{
			ID:      "price-has-currency",
			Context: "//Price[PriceAmount]",
			Assertions: []Assertion{{
				Test:     "CurrencyCode",
				Severity: "warning",
				Message:  "a priced product should state its currency",
			}},
		},
	}}
}

// BuiltinProfiles returns the retailer compatibility profiles shipped with
// the analyzer. Critical conditions are those whose breach blocks listing
// or distribution at that retailer.
func BuiltinProfiles() *ProfileSet {
	isbn := Condition{
		Path:     ".//ProductIdentifier[ProductIDType='15']/IDValue",
		Critical: true,
		Message:  "ISBN-13 is required for listing",
	}
	title := Condition{
		Path:    ".//TitleDetail/TitleElement/TitleText",
		Message: "title is required",
	}
	contributors := Condition{
		Path:    ".//Contributor/PersonName | .//Contributor/PersonNameInverted | .//Contributor/KeyNames",
		Message: "at least one named contributor is required",
	}
	description := Condition{
		Path:    ".//TextContent[TextType='03']/Text",
		Message: "a main description is required",
	}
	form := Condition{
		Path:     ".//ProductForm",
		Critical: true,
		Message:  "product form is required",
	}
	price := Condition{
		Path:     ".//Price/PriceAmount",
		Critical: true,
		Message:  "a price is required for the buy button",
	}
	publisher := Condition{
		Path:    ".//Publisher/PublisherName",
		Message: "publisher of record is required",
	}
	subjects := Condition{
		Path:    ".//Subject/SubjectCode",
		Message: "subject classification improves discovery and is required",
	}
	cover := Condition{
		Path:    ".//SupportingResource[ResourceContentType='01']/ResourceVersion/ResourceLink",
		Message: "a cover image resource is required",
	}
	withdrawn := Condition{
		Path:    ".//PublishingStatus",
		Equals:  "11",
		Message: "withdrawn products cannot be listed",
	}
	unpriced := Condition{
		Path:    ".//SupplyDetail/UnpricedItemType",
		Equals:  "01",
		Message: "free-of-charge supply is not accepted on this channel",
	}

	return &ProfileSet{Profiles: []Profile{
		{
			Name:      "amazon",
			Required:  []Condition{isbn, title, contributors, description, form, price},
			Forbidden: []Condition{withdrawn},
		},
		{
			Name:      "ingram",
			Required:  []Condition{isbn, title, contributors, form, price, criticalCopy(publisher)},
			Forbidden: []Condition{withdrawn},
		},
		{
			Name:      "apple",
			Required:  []Condition{isbn, title, contributors, description, form, cover},
			Forbidden: []Condition{unpriced},
		},
		{
			Name:      "kobo",
			Required:  []Condition{isbn, title, contributors, description, form, price},
			Forbidden: []Condition{withdrawn},
		},
		{
			Name:      "barnes_noble",
			Required:  []Condition{isbn, title, contributors, description, form, price, subjects},
			Forbidden: []Condition{withdrawn},
		},
		{
			Name:      "overdrive",
			Required:  []Condition{isbn, title, contributors, description, form, criticalCopy(publisher), subjects},
			Forbidden: []Condition{unpriced},
		},
	}}
}

func criticalCopy(c Condition) Condition {
	c.Critical = true
	return c
}
