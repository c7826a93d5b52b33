// Package pricingtest provides Price List fixtures and fakes for tests.
package pricingtest

// Paths served by NewServer and referenced by the fixtures.
const (
	EC2RegionIndexPath = "/offers/v1.0/aws/AmazonEC2/current/region_index.json"
	S3RegionIndexPath  = "/offers/v1.0/aws/AmazonS3/current/region_index.json"
	EC2USEast1Path     = "/offers/v1.0/aws/AmazonEC2/20240101000000/us-east-1/index.json"
	EC2USWest2Path     = "/offers/v1.0/aws/AmazonEC2/20240101000000/us-west-2/index.json"
	S3USEast1Path      = "/offers/v1.0/aws/AmazonS3/20240101000000/us-east-1/index.json"
)

// Rate codes present in the fixtures.
const (
	// OnDemandRateCode resolves to "per hour" under OnDemand in us-east-1.
	OnDemandRateCode = "ABCDE12345.JRTCKX.6YS6EN"
	// ReservedRateCode only exists under Reserved in us-east-1.
	ReservedRateCode = "FGHIJ67890.4NA7Y494T4.2TG2D8R56U"
	// AmbiguousRateCode exists under both OnDemand and Reserved in us-east-1.
	AmbiguousRateCode = "KLMNO13579.JRTCKXETXF.6YS6EN2CT7"
	// MissingDimensionRateCode has a known SKU but no such price dimension.
	MissingDimensionRateCode = "ABCDE12345.JRTCKX.ZZZZZZ"
	// UnknownSKURateCode has 20 characters per segment and no matching SKU.
	UnknownSKURateCode = "ZZZZZZZZZZZZZZZZZZZZ.YYYYYYYYYYYYYYYYYYYY.XXXXXXXXXXXXXXXXXXXX"
	// WestRateCode only resolves in us-west-2.
	WestRateCode = "PQRST24680.JRTCKXETXF.6YS6EN2CT7"
)

// OffersJSON is an offers index with three services.
const OffersJSON = `{
  "formatVersion": "v1.0",
  "disclaimer": "fixture",
  "publicationDate": "2024-01-01T00:00:00Z",
  "offers": {
    "AmazonEC2": {
      "offerCode": "AmazonEC2",
      "versionIndexUrl": "/offers/v1.0/aws/AmazonEC2/index.json",
      "currentVersionUrl": "/offers/v1.0/aws/AmazonEC2/current/index.json",
      "currentRegionIndexUrl": "` + EC2RegionIndexPath + `"
    },
    "AmazonS3": {
      "offerCode": "AmazonS3",
      "versionIndexUrl": "/offers/v1.0/aws/AmazonS3/index.json",
      "currentVersionUrl": "/offers/v1.0/aws/AmazonS3/current/index.json",
      "currentRegionIndexUrl": "` + S3RegionIndexPath + `"
    },
    "awskms": {
      "offerCode": "awskms",
      "versionIndexUrl": "/offers/v1.0/aws/awskms/index.json",
      "currentVersionUrl": "/offers/v1.0/aws/awskms/current/index.json",
      "currentRegionIndexUrl": "/offers/v1.0/aws/awskms/current/region_index.json"
    }
  }
}`

// EC2RegionIndexJSON lists us-east-1, us-west-2 and a region missing from
// the name table.
const EC2RegionIndexJSON = `{
  "formatVersion": "v1.0",
  "disclaimer": "fixture",
  "publicationDate": "2024-01-01T00:00:00Z",
  "regions": {
    "us-east-1": {
      "regionCode": "us-east-1",
      "currentVersionUrl": "` + EC2USEast1Path + `"
    },
    "us-west-2": {
      "regionCode": "us-west-2",
      "currentVersionUrl": "` + EC2USWest2Path + `"
    },
    "xx-test-9": {
      "regionCode": "xx-test-9",
      "currentVersionUrl": "/offers/v1.0/aws/AmazonEC2/20240101000000/xx-test-9/index.json"
    }
  }
}`

// S3RegionIndexJSON lists only us-east-1.
const S3RegionIndexJSON = `{
  "formatVersion": "v1.0",
  "regions": {
    "us-east-1": {
      "regionCode": "us-east-1",
      "currentVersionUrl": "` + S3USEast1Path + `"
    }
  }
}`

// EC2USEast1JSON is the us-east-1 EC2 pricing document.
const EC2USEast1JSON = `{
  "formatVersion": "v1.0",
  "disclaimer": "fixture",
  "offerCode": "AmazonEC2",
  "version": "20240101000000",
  "publicationDate": "2024-01-01T00:00:00Z",
  "products": {
    "ABCDE12345": {
      "sku": "ABCDE12345",
      "productFamily": "Compute Instance",
      "attributes": {
        "instanceType": "m5.large"
      }
    },
    "FGHIJ67890": {
      "sku": "FGHIJ67890",
      "productFamily": "Compute Instance",
      "attributes": {
        "servicecode": "AmazonEC2",
        "location": "US East (N. Virginia)",
        "instanceType": "c5.xlarge",
        "vcpu": "4",
        "memory": "8 GiB"
      }
    },
    "KLMNO13579": {
      "sku": "KLMNO13579",
      "productFamily": "Compute Instance",
      "attributes": {
        "instanceType": "t3.micro"
      }
    }
  },
  "terms": {
    "OnDemand": {
      "ABCDE12345": {
        "ABCDE12345.JRTCKX": {
          "offerTermCode": "JRTCKX",
          "sku": "ABCDE12345",
          "effectiveDate": "2024-01-01T00:00:00Z",
          "priceDimensions": {
            "ABCDE12345.JRTCKX.6YS6EN": {
              "rateCode": "ABCDE12345.JRTCKX.6YS6EN",
              "description": "per hour",
              "beginRange": "0",
              "endRange": "Inf",
              "unit": "Hrs",
              "pricePerUnit": {"USD": "0.1"},
              "appliesTo": []
            }
          }
        }
      },
      "KLMNO13579": {
        "KLMNO13579.JRTCKXETXF": {
          "offerTermCode": "JRTCKXETXF",
          "sku": "KLMNO13579",
          "effectiveDate": "2024-01-01T00:00:00Z",
          "priceDimensions": {
            "KLMNO13579.JRTCKXETXF.6YS6EN2CT7": {
              "rateCode": "KLMNO13579.JRTCKXETXF.6YS6EN2CT7",
              "description": "on demand t3.micro",
              "beginRange": "0",
              "endRange": "Inf",
              "unit": "Hrs",
              "pricePerUnit": {"USD": "0.0104000000", "CNY": "0.0700000000"},
              "appliesTo": []
            }
          }
        }
      }
    },
    "Reserved": {
      "FGHIJ67890": {
        "FGHIJ67890.4NA7Y494T4": {
          "offerTermCode": "4NA7Y494T4",
          "sku": "FGHIJ67890",
          "effectiveDate": "2024-01-01T00:00:00Z",
          "priceDimensions": {
            "FGHIJ67890.4NA7Y494T4.2TG2D8R56U": {
              "rateCode": "FGHIJ67890.4NA7Y494T4.2TG2D8R56U",
              "description": "Upfront Fee",
              "beginRange": "0",
              "endRange": "Inf",
              "unit": "Quantity",
              "pricePerUnit": {"USD": "1051"},
              "appliesTo": []
            }
          },
          "termAttributes": {
            "LeaseContractLength": "1yr",
            "OfferingClass": "standard",
            "PurchaseOption": "All Upfront"
          }
        }
      },
      "KLMNO13579": {
        "KLMNO13579.JRTCKXETXF": {
          "offerTermCode": "JRTCKXETXF",
          "sku": "KLMNO13579",
          "effectiveDate": "2024-01-01T00:00:00Z",
          "priceDimensions": {
            "KLMNO13579.JRTCKXETXF.6YS6EN2CT7": {
              "rateCode": "KLMNO13579.JRTCKXETXF.6YS6EN2CT7",
              "description": "reserved t3.micro",
              "beginRange": "0",
              "endRange": "Inf",
              "unit": "Hrs",
              "pricePerUnit": {"USD": "0.0060000000"},
              "appliesTo": []
            }
          }
        }
      }
    }
  }
}`

// EC2USWest2JSON is the us-west-2 EC2 pricing document.
const EC2USWest2JSON = `{
  "formatVersion": "v1.0",
  "offerCode": "AmazonEC2",
  "version": "20240101000000",
  "publicationDate": "2024-01-01T00:00:00Z",
  "products": {
    "PQRST24680": {
      "sku": "PQRST24680",
      "productFamily": "Compute Instance",
      "attributes": {
        "instanceType": "m5.large",
        "location": "US West (Oregon)"
      }
    }
  },
  "terms": {
    "OnDemand": {
      "PQRST24680": {
        "PQRST24680.JRTCKXETXF": {
          "offerTermCode": "JRTCKXETXF",
          "sku": "PQRST24680",
          "effectiveDate": "2024-01-01T00:00:00Z",
          "priceDimensions": {
            "PQRST24680.JRTCKXETXF.6YS6EN2CT7": {
              "rateCode": "PQRST24680.JRTCKXETXF.6YS6EN2CT7",
              "description": "$0.096 per On Demand Linux m5.large Instance Hour",
              "beginRange": "0",
              "endRange": "Inf",
              "unit": "Hrs",
              "pricePerUnit": {"USD": "0.0960000000"},
              "appliesTo": []
            }
          }
        }
      }
    }
  }
}`

// S3USEast1JSON is a small S3 pricing document.
const S3USEast1JSON = `{
  "formatVersion": "v1.0",
  "offerCode": "AmazonS3",
  "version": "20240101000000",
  "products": {
    "S3STD00001": {
      "sku": "S3STD00001",
      "productFamily": "Storage",
      "attributes": {"storageClass": "General Purpose"}
    }
  },
  "terms": {
    "OnDemand": {
      "S3STD00001": {
        "S3STD00001.JRTCKXETXF": {
          "offerTermCode": "JRTCKXETXF",
          "sku": "S3STD00001",
          "priceDimensions": {
            "S3STD00001.JRTCKXETXF.PGHJ3S3EYE": {
              "rateCode": "S3STD00001.JRTCKXETXF.PGHJ3S3EYE",
              "description": "$0.023 per GB - first 50 TB / month of storage used",
              "beginRange": "0",
              "endRange": "51200",
              "unit": "GB-Mo",
              "pricePerUnit": {"USD": "0.0230000000"},
              "appliesTo": []
            }
          }
        }
      }
    }
  }
}`

// RegionNamesJSON is a small keyed region-name table. xx-test-9 is absent
// on purpose.
const RegionNamesJSON = `{
  "us-east-1": {"name": "US East (N. Virginia)"},
  "us-west-2": {"name": "US West (Oregon)"}
}`

// Documents maps every served path to its body.
func Documents() map[string]string {
	return map[string]string{
		"/offers/v1.0/aws/index.json": OffersJSON,
		EC2RegionIndexPath:            EC2RegionIndexJSON,
		S3RegionIndexPath:             S3RegionIndexJSON,
		EC2USEast1Path:                EC2USEast1JSON,
		EC2USWest2Path:                EC2USWest2JSON,
		S3USEast1Path:                 S3USEast1JSON,
	}
}
