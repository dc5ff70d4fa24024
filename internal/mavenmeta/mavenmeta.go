// Package mavenmeta parses and generates the maven-metadata.xml and POM
// files published alongside Android build artifacts (§4.7 step 5, §8
// "Maven round-trip").
//
// Grounded on build.rs's parse_existing_maven_metadata /
// generate_maven_metadata_content / generate_pom_content: a line-oriented
// <version>...</version> scan rather than a full XML parser, since the
// only structured data ever read back out of the file is the sorted
// version list.
package mavenmeta

import (
	"fmt"
	"strings"
	"time"

	"github.com/skyline-ota/releasectl/internal/semver"
)

// ParseVersions extracts every <version>...</version> entry from an
// existing maven-metadata.xml, sorted ascending. A malformed individual
// entry is skipped (not logged) rather than aborting the whole parse, so
// the returned slice holds only the entries that parsed.
func ParseVersions(content string) ([]semver.Version, error) {
	var versions []semver.Version
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "<version>") || !strings.HasSuffix(trimmed, "</version>") {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(trimmed, "<version>"), "</version>")
		if raw == "" {
			continue
		}
		v, err := semver.Parse(raw)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	semver.Sort(versions)
	return versions, nil
}

// GenerateMetadata renders maven-metadata.xml for the given org/app and
// the full known version set; both <latest> and <release> point at the
// highest version, with org/app-specific groupId/artifactId (groupId ==
// org, per the Open Question decision recorded in the grounding ledger).
func GenerateMetadata(org, app string, versions []semver.Version, now time.Time) string {
	latest := semver.Default
	if len(versions) > 0 {
		latest = versions[len(versions)-1]
	}

	var versionsXML strings.Builder
	for i, v := range versions {
		if i > 0 {
			versionsXML.WriteString("\n")
		}
		versionsXML.WriteString(fmt.Sprintf("      <version>%s</version>", v.String()))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<metadata>
    <groupId>%s</groupId>
    <artifactId>%s-airborne-assets</artifactId>
    <versioning>
        <latest>%s</latest>
        <release>%s</release>
        <versions>
%s
        </versions>
        <lastUpdated>%d</lastUpdated>
    </versioning>
</metadata>`, org, app, latest, latest, versionsXML.String(), now.Unix())
}

// GeneratePOM renders the POM file published next to each versioned AAR.
func GeneratePOM(org, app string, version semver.Version) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0"
         xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
         xsi:schemaLocation="http://maven.apache.org/POM/4.0.0 http://maven.apache.org/xsd/maven-4.0.0.xsd">
    <modelVersion>4.0.0</modelVersion>
    <groupId>%s</groupId>
    <artifactId>%s-airborne-assets</artifactId>
    <version>%s</version>
    <packaging>aar</packaging>
    <name>Airborne Assets</name>
    <description>Release control plane assets package for %s/%s</description>
</project>`, org, app, version.String(), org, app)
}
